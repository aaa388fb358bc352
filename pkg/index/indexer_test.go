package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleDocs = []Document{
	{ID: "1", Title: "The Go Programming Language", Authors: "Alan Donovan", Publisher: "Addison-Wesley", ISBN: "9780134190440", BookCount: 2, LoanCount: 1, LibCode: "111101", LibName: "Jongno"},
	{ID: "2", Title: "Concurrency in Go", Authors: "Katherine Cox-Buday", Publisher: "O'Reilly"},
	{ID: "3", Title: "Learning Rust", Authors: "Someone", Publisher: "Go Press"},
}

func newMemManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager("")
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	require.NoError(t, m.IndexBooks(sampleDocs))
	return m
}

func TestManager_IndexAndSearch(t *testing.T) {
	m := newMemManager(t)

	n, err := m.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	docs, err := m.Search(context.Background(), "donovan", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, sampleDocs[0], docs[0], "stored fields round trip")
}

func TestManager_SearchAcrossFields(t *testing.T) {
	m := newMemManager(t)

	docs, err := m.Search(context.Background(), "go", 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	assert.ElementsMatch(t, []string{"1", "2", "3"}, ids)

	docs, err = m.Search(context.Background(), "go", 1)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = m.Search(context.Background(), "haskell", 10)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestManager_Delete(t *testing.T) {
	m := newMemManager(t)
	require.NoError(t, m.DeleteBook("2"))

	docs, err := m.Search(context.Background(), "concurrency", 10)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestManager_RejectsMissingID(t *testing.T) {
	m, err := NewManager("")
	require.NoError(t, err)
	defer m.Close()
	assert.Error(t, m.IndexBooks([]Document{{Title: "no id"}}))
}

func TestManager_Persistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.bleve")

	m, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, m.IndexBooks(sampleDocs[:1]))
	require.NoError(t, m.Close())

	m, err = NewManager(path)
	require.NoError(t, err)
	defer m.Close()
	docs, err := m.Search(context.Background(), "programming", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "1", docs[0].ID)
}
