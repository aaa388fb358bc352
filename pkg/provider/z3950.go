package provider

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/yourusername/lihee-search/pkg/catalog"
	"github.com/yourusername/lihee-search/pkg/z3950"
	"github.com/yourusername/lihee-search/pkg/z3950/pool"
)

// SourceIDZ3950Prefix is prepended to the target name to form the source id.
const SourceIDZ3950Prefix = "Z3950."

const defaultMaxRecords = 20

var yearRegex = regexp.MustCompile(`\d{4}`)

// Z3950Target holds connection details for a remote Z39.50 server.
type Z3950Target struct {
	Name       string
	Host       string
	Port       int
	Database   string
	Encoding   string // "MARC21", "UNIMARC"
	MaxRecords int
}

// Z3950Source searches one Z39.50 target with sessions borrowed from a pool.
type Z3950Source struct {
	target Z3950Target
	pool   *pool.Pool
}

func NewZ3950Source(target Z3950Target, p *pool.Pool) *Z3950Source {
	if target.MaxRecords <= 0 {
		target.MaxRecords = defaultMaxRecords
	}
	return &Z3950Source{target: target, pool: p}
}

func (s *Z3950Source) ID() string { return SourceIDZ3950Prefix + s.target.Name }

// Search runs a Bib-1 "any" query and presents up to MaxRecords hits.
func (s *Z3950Source) Search(ctx context.Context, keyword string) ([]catalog.Book, error) {
	client, err := s.pool.Get(ctx, s.target.Host, s.target.Port)
	if err != nil {
		return nil, s.wrap(err)
	}
	// Put closes the session instead of pooling it if the exchange broke it.
	defer s.pool.Put(client)

	count, err := client.Search(ctx, s.target.Database, z3950.AnyOf(keyword))
	if err != nil {
		return nil, s.wrap(err)
	}
	if count == 0 {
		return nil, nil
	}

	records, err := client.Present(ctx, 1, min(count, s.target.MaxRecords), z3950.SyntaxOID(s.target.Encoding))
	if err != nil {
		return nil, s.wrap(err)
	}

	books := make([]catalog.Book, 0, len(records))
	for i, rec := range records {
		books = append(books, s.toBook(rec, i+1))
	}
	return books, nil
}

func (s *Z3950Source) wrap(err error) error {
	op := OpTransport
	if errors.Is(err, z3950.ErrInitRejected) || errors.Is(err, z3950.ErrServerClosed) {
		op = OpStatus
	}
	return sourceErr(s.ID(), op, err)
}

func (s *Z3950Source) toBook(rec *z3950.Record, position int) catalog.Book {
	local := strings.TrimSpace(rec.ControlField("001"))
	if local == "" {
		local = strconv.Itoa(position)
	}

	b := catalog.Book{
		ID: catalog.NamespacedID(s.ID(), local),
		Library: &catalog.Library{
			ID:   catalog.NamespacedID(s.ID(), s.target.Name),
			Name: s.target.Name,
		},
	}

	if f, ok := rec.First("245"); ok {
		b.Title = trimISBD(joinNonEmpty(" ", f.Subfield('a'), f.Subfield('b')))
	}

	var authors []string
	for _, tag := range []string{"100", "700"} {
		for _, f := range rec.FieldsByTag(tag) {
			if a := trimISBD(f.Subfield('a')); a != "" {
				authors = append(authors, a)
			}
		}
	}
	b.Authors = strings.Join(authors, "; ")

	if f, ok := rec.First("264", "260"); ok {
		b.Publisher = trimISBD(f.Subfield('b'))
		b.PublicationYear = yearRegex.FindString(f.Subfield('c'))
	}

	isbns := rec.FieldsByTag("020")
	if len(isbns) > 0 {
		b.ISBN = CleanISBN(isbns[0].Subfield('a'))
	}
	if len(isbns) > 1 {
		b.SetISBN = CleanISBN(isbns[1].Subfield('a'))
	}

	if f, ok := rec.First("056"); ok {
		b.KDC = strings.TrimSpace(f.Subfield('a'))
	}
	if f, ok := rec.First("490", "830"); ok {
		b.Vol = trimISBD(f.Subfield('v'))
	}
	return b
}

// trimISBD drops the trailing punctuation cataloguers put between
// subfields, e.g. "Title /" or "Publisher,".
func trimISBD(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), " /:;,="))
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = trimISBD(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
