// Package index keeps a local bleve full-text index of catalog records.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Document is the stored form of a catalog record. ID is the record's
// source-local id.
type Document struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Authors         string `json:"authors"`
	Publisher       string `json:"publisher"`
	Link            string `json:"link"`
	AdditionSymbol  string `json:"addition_symbol"`
	ISBN            string `json:"isbn"`
	SetISBN         string `json:"set_isbn"`
	KDC             string `json:"kdc"`
	PublicationYear string `json:"publication_year"`
	RegDate         string `json:"reg_date"`
	Vol             string `json:"vol"`
	BookCount       int32  `json:"book_count"`
	LoanCount       int32  `json:"loan_count"`
	LibCode         string `json:"lib_code"`
	LibName         string `json:"lib_name"`
}

// Field weights for keyword search.
const (
	titleBoost     = 1.1
	authorsBoost   = 1.0
	publisherBoost = 0.8
)

var textFields = []string{"title", "authors", "publisher"}

var storedFields = []string{
	"link", "addition_symbol", "isbn", "set_isbn", "kdc",
	"publication_year", "reg_date", "vol", "lib_code", "lib_name",
}

type Manager struct {
	index bleve.Index
	path  string
}

// NewManager opens the index at path, creating it if missing. An empty path
// gives a memory-only index.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create memory index: %w", err)
		}
		return &Manager{index: idx}, nil
	}

	var idx bleve.Index
	var err error
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		idx, err = bleve.New(path, newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
		slog.Info("created new bleve index", "path", path)
	} else {
		idx, err = bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		slog.Info("opened existing bleve index", "path", path)
	}
	return &Manager{index: idx, path: path}, nil
}

func newMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = true

	keyword := bleve.NewKeywordFieldMapping()
	keyword.Store = true

	number := bleve.NewNumericFieldMapping()
	number.Store = true

	doc := bleve.NewDocumentMapping()
	for _, f := range textFields {
		doc.AddFieldMappingsAt(f, text)
	}
	for _, f := range storedFields {
		doc.AddFieldMappingsAt(f, keyword)
	}
	doc.AddFieldMappingsAt("book_count", number)
	doc.AddFieldMappingsAt("loan_count", number)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

func (m *Manager) Close() error {
	return m.index.Close()
}

// IndexBooks adds or replaces docs in one batch.
func (m *Manager) IndexBooks(docs []Document) error {
	batch := m.index.NewBatch()
	for _, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("document without id: %q", d.Title)
		}
		if err := batch.Index(d.ID, d); err != nil {
			return fmt.Errorf("index %s: %w", d.ID, err)
		}
	}
	if err := m.index.Batch(batch); err != nil {
		return err
	}
	slog.Info("indexed books", "count", len(docs), "path", m.path)
	return nil
}

// DeleteBook removes a document by id.
func (m *Manager) DeleteBook(id string) error {
	return m.index.Delete(id)
}

// Search matches keyword against title, authors and publisher and returns
// up to limit documents, best first.
func (m *Manager) Search(ctx context.Context, keyword string, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	boosts := []float64{titleBoost, authorsBoost, publisherBoost}
	clauses := make([]query.Query, 0, len(textFields))
	for i, f := range textFields {
		mq := bleve.NewMatchQuery(keyword)
		mq.SetField(f)
		mq.SetBoost(boosts[i])
		clauses = append(clauses, mq)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(clauses...), limit, 0, false)
	req.Fields = []string{"*"}

	res, err := m.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(res.Hits))
	for _, hit := range res.Hits {
		docs = append(docs, fromFields(hit.ID, hit.Fields))
	}
	slog.Debug("index search executed", "keyword", keyword, "hits", res.Total, "took", res.Took)
	return docs, nil
}

// Count returns the number of indexed documents.
func (m *Manager) Count() (uint64, error) {
	return m.index.DocCount()
}

func fromFields(id string, f map[string]interface{}) Document {
	str := func(k string) string {
		s, _ := f[k].(string)
		return s
	}
	num := func(k string) int32 {
		n, _ := f[k].(float64)
		return int32(n)
	}
	return Document{
		ID:              id,
		Title:           str("title"),
		Authors:         str("authors"),
		Publisher:       str("publisher"),
		Link:            str("link"),
		AdditionSymbol:  str("addition_symbol"),
		ISBN:            str("isbn"),
		SetISBN:         str("set_isbn"),
		KDC:             str("kdc"),
		PublicationYear: str("publication_year"),
		RegDate:         str("reg_date"),
		Vol:             str("vol"),
		BookCount:       num("book_count"),
		LoanCount:       num("loan_count"),
		LibCode:         str("lib_code"),
		LibName:         str("lib_name"),
	}
}
