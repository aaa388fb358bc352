package provider

import (
	"context"

	"github.com/yourusername/lihee-search/pkg/catalog"
	"github.com/yourusername/lihee-search/pkg/index"
)

// SourceIDIndex namespaces records from the local bleve index.
const SourceIDIndex = "IDX"

// IndexSource searches an embedded bleve index.
type IndexSource struct {
	manager *index.Manager
	limit   int
}

func NewIndexSource(m *index.Manager, limit int) *IndexSource {
	if limit <= 0 {
		limit = 50
	}
	return &IndexSource{manager: m, limit: limit}
}

func (s *IndexSource) ID() string { return SourceIDIndex }

func (s *IndexSource) Search(ctx context.Context, keyword string) ([]catalog.Book, error) {
	docs, err := s.manager.Search(ctx, keyword, s.limit)
	if err != nil {
		return nil, sourceErr(SourceIDIndex, OpQuery, err)
	}
	books := make([]catalog.Book, 0, len(docs))
	for _, d := range docs {
		books = append(books, DocumentToBook(SourceIDIndex, d))
	}
	return books, nil
}

// DocumentToBook maps a stored index document into a Book namespaced by
// source.
func DocumentToBook(source string, d index.Document) catalog.Book {
	b := catalog.Book{
		ID:              catalog.NamespacedID(source, d.ID),
		Title:           d.Title,
		Authors:         d.Authors,
		Publisher:       d.Publisher,
		Link:            d.Link,
		AdditionSymbol:  d.AdditionSymbol,
		ISBN:            d.ISBN,
		SetISBN:         d.SetISBN,
		KDC:             d.KDC,
		PublicationYear: d.PublicationYear,
		RegDate:         d.RegDate,
		Vol:             d.Vol,
		BookCount:       d.BookCount,
		LoanCount:       d.LoanCount,
	}
	if d.LibCode != "" {
		b.Library = catalog.NewLibrary(source, d.LibCode)
		b.Library.Name = d.LibName
	}
	return b
}

// BookToDocument is the inverse of DocumentToBook for records that are not
// namespaced yet, as loaded by the index command.
func BookToDocument(b catalog.Book) index.Document {
	d := index.Document{
		ID:              b.ID,
		Title:           b.Title,
		Authors:         b.Authors,
		Publisher:       b.Publisher,
		Link:            b.Link,
		AdditionSymbol:  b.AdditionSymbol,
		ISBN:            b.ISBN,
		SetISBN:         b.SetISBN,
		KDC:             b.KDC,
		PublicationYear: b.PublicationYear,
		RegDate:         b.RegDate,
		Vol:             b.Vol,
		BookCount:       b.BookCount,
		LoanCount:       b.LoanCount,
	}
	if b.Library != nil {
		d.LibCode = b.Library.ID
		d.LibName = b.Library.Name
	}
	return d
}
