package provider

import (
	"context"

	"github.com/yourusername/lihee-search/pkg/catalog"
)

// MemorySource serves a fixed list of Books. Records are stored with their
// source-local ids; Search namespaces them on the way out.
type MemorySource struct {
	id    string
	books []catalog.Book
}

// NewMemorySource copies books so later changes by the caller are not seen.
func NewMemorySource(id string, books ...catalog.Book) *MemorySource {
	return &MemorySource{id: id, books: append([]catalog.Book(nil), books...)}
}

func (m *MemorySource) ID() string { return m.id }

// Search matches keyword against title, authors and publisher, ignoring case.
func (m *MemorySource) Search(ctx context.Context, keyword string) ([]catalog.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, sourceErr(m.id, OpTransport, err)
	}

	var out []catalog.Book
	for _, b := range m.books {
		if !matchesAny(keyword, b.Title, b.Authors, b.Publisher) {
			continue
		}
		b.ID = catalog.NamespacedID(m.id, b.ID)
		if b.Library != nil {
			lib := *b.Library
			lib.ID = catalog.NamespacedID(m.id, lib.ID)
			b.Library = &lib
		}
		out = append(out, b)
	}
	return out, nil
}
