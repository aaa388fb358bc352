package provider

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/yourusername/lihee-search/pkg/catalog"
)

// SourceIDSQL namespaces records from the relational catalog.
const SourceIDSQL = "SQL"

// Supported SQL drivers. The names are also the database/sql driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const sqlColumns = `id, title, authors, publisher, link, addition_symbol, isbn, set_isbn, kdc,
	publication_year, reg_date, vol, book_count, loan_count, lib_code, lib_name`

// likeEscaper escapes LIKE wildcards so the keyword matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// OpenSQL opens and pings a catalog database.
func OpenSQL(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// modernc sqlite serializes writers; one connection also keeps
		// ":memory:" databases from splitting across connections.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// SQLSource searches a books table by title, authors and publisher.
type SQLSource struct {
	db    *sql.DB
	query string
}

// NewSQLSource prepares the search statement text for driver. table must be a
// plain identifier.
func NewSQLSource(db *sql.DB, driver, table string, limit int) (*SQLSource, error) {
	query, err := buildSQLQuery(driver, table, limit)
	if err != nil {
		return nil, err
	}
	return &SQLSource{db: db, query: query}, nil
}

func buildSQLQuery(driver, table string, limit int) (string, error) {
	if !identRegex.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	if limit <= 0 {
		return "", fmt.Errorf("invalid limit %d", limit)
	}

	var like string
	var args [3]string
	switch driver {
	case DriverPostgres:
		like = "ILIKE"
		args = [3]string{"$1", "$2", "$3"}
	case DriverSQLite:
		like = "LIKE"
		args = [3]string{"?", "?", "?"}
	default:
		return "", fmt.Errorf("unsupported sql driver %q", driver)
	}

	return fmt.Sprintf(`SELECT %s FROM %s
	WHERE title %[3]s %[4]s ESCAPE '\' OR authors %[3]s %[5]s ESCAPE '\' OR publisher %[3]s %[6]s ESCAPE '\'
	ORDER BY id LIMIT %[7]d`, sqlColumns, table, like, args[0], args[1], args[2], limit), nil
}

func (s *SQLSource) ID() string { return SourceIDSQL }

func (s *SQLSource) Search(ctx context.Context, keyword string) ([]catalog.Book, error) {
	pattern := "%" + likeEscaper.Replace(keyword) + "%"
	rows, err := s.db.QueryContext(ctx, s.query, pattern, pattern, pattern)
	if err != nil {
		return nil, sourceErr(SourceIDSQL, OpQuery, err)
	}
	defer rows.Close()

	var books []catalog.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, sourceErr(SourceIDSQL, OpDecode, err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, sourceErr(SourceIDSQL, OpQuery, err)
	}
	return books, nil
}

func scanBook(rows *sql.Rows) (catalog.Book, error) {
	var (
		id, title, authors, publisher, link, addition sql.NullString
		isbn, setISBN, kdc, year, regDate, vol        sql.NullString
		libCode, libName                              sql.NullString
		bookCount, loanCount                          sql.NullInt32
	)
	if err := rows.Scan(&id, &title, &authors, &publisher, &link, &addition, &isbn, &setISBN, &kdc,
		&year, &regDate, &vol, &bookCount, &loanCount, &libCode, &libName); err != nil {
		return catalog.Book{}, err
	}
	if !id.Valid || id.String == "" {
		return catalog.Book{}, fmt.Errorf("row without id")
	}

	b := catalog.Book{
		ID:              catalog.NamespacedID(SourceIDSQL, id.String),
		Title:           title.String,
		Authors:         authors.String,
		Publisher:       publisher.String,
		Link:            link.String,
		AdditionSymbol:  addition.String,
		ISBN:            isbn.String,
		SetISBN:         setISBN.String,
		KDC:             kdc.String,
		PublicationYear: year.String,
		RegDate:         regDate.String,
		Vol:             vol.String,
		BookCount:       bookCount.Int32,
		LoanCount:       loanCount.Int32,
	}
	if libCode.String != "" {
		b.Library = catalog.NewLibrary(SourceIDSQL, libCode.String)
		b.Library.Name = libName.String
	}
	return b, nil
}
