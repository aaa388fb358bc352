package provider

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/lihee-search/pkg/catalog"
)

type countingSource struct {
	DataSource
	calls atomic.Int32
}

func (c *countingSource) Search(ctx context.Context, keyword string) ([]catalog.Book, error) {
	c.calls.Add(1)
	return c.DataSource.Search(ctx, keyword)
}

func TestLimited_Delegates(t *testing.T) {
	src := &countingSource{DataSource: NewMemorySource("MEM", catalog.Book{ID: "1", Title: "Go"})}
	l := Limited(src, 100, 1)

	assert.Equal(t, "MEM", l.ID())
	books, err := l.Search(context.Background(), "go")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "MEM::1", books[0].ID)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestLimited_WaitExceedsDeadline(t *testing.T) {
	src := &countingSource{DataSource: NewMemorySource("MEM")}
	l := Limited(src, 0.1, 1)

	_, err := l.Search(context.Background(), "go")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Search(ctx, "go")
	se, ok := IsSourceError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, OpRateLimit, se.Op)
	assert.Equal(t, "MEM", se.Source)
	assert.Equal(t, int32(1), src.calls.Load(), "throttled call must not reach the source")
}
