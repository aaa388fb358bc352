package provider

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `CREATE TABLE books (
	id TEXT PRIMARY KEY,
	title TEXT, authors TEXT, publisher TEXT, link TEXT, addition_symbol TEXT,
	isbn TEXT, set_isbn TEXT, kdc TEXT, publication_year TEXT, reg_date TEXT, vol TEXT,
	book_count INTEGER, loan_count INTEGER, lib_code TEXT, lib_name TEXT
)`

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := OpenSQL(ctx, DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(ctx, testSchema)
	require.NoError(t, err)

	rows := [][]any{
		{"b1", "해리 포터와 마법사의 돌", "J.K. 롤링", "문학수첩", "http://lib/b1", "03840", "9788983920683", "9788983920669", "843", "2000", "2020-01-02", "1", 3, 1, "111101", "종로도서관"},
		{"b2", "The Go Programming Language", "Donovan", "Addison-Wesley", nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil},
		{"b3", "100% Go", "Someone", "Press_Co", nil, nil, nil, nil, nil, nil, nil, nil, 0, 0, "111470", nil},
	}
	for _, r := range rows {
		_, err := db.ExecContext(ctx, `INSERT INTO books VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, r...)
		require.NoError(t, err)
	}
	return db
}

func TestSQLSource_Search(t *testing.T) {
	src, err := NewSQLSource(openTestDB(t), DriverSQLite, "books", 50)
	require.NoError(t, err)
	assert.Equal(t, "SQL", src.ID())

	books, err := src.Search(context.Background(), "해리")
	require.NoError(t, err)
	require.Len(t, books, 1)

	b := books[0]
	assert.Equal(t, "SQL::b1", b.ID)
	assert.Equal(t, "해리 포터와 마법사의 돌", b.Title)
	assert.Equal(t, "http://lib/b1", b.Link)
	assert.Equal(t, "03840", b.AdditionSymbol)
	assert.Equal(t, "9788983920669", b.SetISBN)
	assert.Equal(t, "2020-01-02", b.RegDate)
	assert.Equal(t, int32(3), b.BookCount)
	assert.Equal(t, int32(1), b.LoanCount)
	require.NotNil(t, b.Library)
	assert.Equal(t, "SQL::111101", b.Library.ID)
	assert.Equal(t, "종로도서관", b.Library.Name)
}

func TestSQLSource_NullColumns(t *testing.T) {
	src, err := NewSQLSource(openTestDB(t), DriverSQLite, "books", 50)
	require.NoError(t, err)

	books, err := src.Search(context.Background(), "addison")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "SQL::b2", books[0].ID)
	assert.Empty(t, books[0].ISBN)
	assert.Zero(t, books[0].BookCount)
	assert.Nil(t, books[0].Library)
}

func TestSQLSource_Wildcards(t *testing.T) {
	src, err := NewSQLSource(openTestDB(t), DriverSQLite, "books", 50)
	require.NoError(t, err)

	books, err := src.Search(context.Background(), "100%")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "SQL::b3", books[0].ID)

	books, err = src.Search(context.Background(), "%")
	require.NoError(t, err)
	assert.Len(t, books, 1, "%% must match literally")

	books, err = src.Search(context.Background(), "re_s")
	require.NoError(t, err)
	assert.Empty(t, books, "_ must match literally")
}

func TestSQLSource_OrderAndLimit(t *testing.T) {
	db := openTestDB(t)
	src, err := NewSQLSource(db, DriverSQLite, "books", 50)
	require.NoError(t, err)

	books, err := src.Search(context.Background(), "go")
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "SQL::b2", books[0].ID)
	assert.Equal(t, "SQL::b3", books[1].ID)

	limited, err := NewSQLSource(db, DriverSQLite, "books", 1)
	require.NoError(t, err)
	books, err = limited.Search(context.Background(), "go")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "SQL::b2", books[0].ID)
}

func TestSQLSource_QueryError(t *testing.T) {
	src, err := NewSQLSource(openTestDB(t), DriverSQLite, "missing_table", 10)
	require.NoError(t, err)

	books, err := src.Search(context.Background(), "go")
	assert.Nil(t, books)
	se, ok := IsSourceError(err)
	require.True(t, ok)
	assert.Equal(t, "SQL", se.Source)
	assert.Equal(t, OpQuery, se.Op)
}

func TestBuildSQLQuery(t *testing.T) {
	q, err := buildSQLQuery(DriverPostgres, "books", 50)
	require.NoError(t, err)
	assert.Contains(t, q, "title ILIKE $1")
	assert.Contains(t, q, "publisher ILIKE $3")
	assert.Contains(t, q, "LIMIT 50")

	q, err = buildSQLQuery(DriverSQLite, "books", 5)
	require.NoError(t, err)
	assert.Contains(t, q, "authors LIKE ?")
	assert.NotContains(t, q, "$1")

	_, err = buildSQLQuery(DriverSQLite, "books; DROP TABLE x", 5)
	assert.Error(t, err)
	_, err = buildSQLQuery("mysql", "books", 5)
	assert.Error(t, err)
	_, err = buildSQLQuery(DriverSQLite, "books", 0)
	assert.Error(t, err)
}

func TestOpenSQL_UnknownDriver(t *testing.T) {
	_, err := OpenSQL(context.Background(), "oracle", "")
	assert.Error(t, err)
}
