package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/lihee-search/pkg/catalog"
	"github.com/yourusername/lihee-search/pkg/index"
)

func TestIndexSource_Search(t *testing.T) {
	m, err := index.NewManager("")
	require.NoError(t, err)
	defer m.Close()

	in := []catalog.Book{
		{ID: "42", Title: "해리 포터와 마법사의 돌", Authors: "J.K. 롤링", ISBN: "9788983920683", BookCount: 4,
			Library: &catalog.Library{ID: "111101", Name: "종로도서관"}},
		{ID: "43", Title: "Go in Action", Authors: "William Kennedy"},
	}
	docs := make([]index.Document, 0, len(in))
	for _, b := range in {
		docs = append(docs, BookToDocument(b))
	}
	require.NoError(t, m.IndexBooks(docs))

	src := NewIndexSource(m, 10)
	assert.Equal(t, "IDX", src.ID())

	books, err := src.Search(context.Background(), "해리")
	require.NoError(t, err)
	require.Len(t, books, 1)
	b := books[0]
	assert.Equal(t, "IDX::42", b.ID)
	assert.Equal(t, "9788983920683", b.ISBN)
	assert.Equal(t, int32(4), b.BookCount)
	require.NotNil(t, b.Library)
	assert.Equal(t, "IDX::111101", b.Library.ID)
	assert.Equal(t, "종로도서관", b.Library.Name)

	books, err = src.Search(context.Background(), "kennedy")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "IDX::43", books[0].ID)
	assert.Nil(t, books[0].Library)
}

func TestIndexSource_CancelledContext(t *testing.T) {
	m, err := index.NewManager("")
	require.NoError(t, err)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewIndexSource(m, 10).Search(ctx, "go")
	se, ok := IsSourceError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, OpQuery, se.Op)
}
