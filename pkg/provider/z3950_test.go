package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/lihee-search/pkg/z3950"
	"github.com/yourusername/lihee-search/pkg/z3950/pool"
	"github.com/yourusername/lihee-search/pkg/z3950/z3950test"
)

func kolisRecord(id string) []byte {
	sf := func(code byte, v string) z3950.Subfield { return z3950.Subfield{Code: code, Value: v} }
	return z3950.BuildMARC([]z3950.Field{
		{Tag: "001", Value: id},
		{Tag: "020", Subfields: []z3950.Subfield{sf('a', "9788983920683 (v.1)"), sf('g', "04840")}},
		{Tag: "020", Subfields: []z3950.Subfield{sf('a', "9788983920669 (set)")}},
		{Tag: "056", Subfields: []z3950.Subfield{sf('a', "843"), sf('2', "6")}},
		{Tag: "100", Subfields: []z3950.Subfield{sf('a', "롤링, J.K.")}},
		{Tag: "245", Indicators: "10", Subfields: []z3950.Subfield{sf('a', "해리 포터와 마법사의 돌 /"), sf('c', "조앤 K. 롤링 지음")}},
		{Tag: "260", Subfields: []z3950.Subfield{sf('a', "서울 :"), sf('b', "문학수첩,"), sf('c', "c2000.")}},
		{Tag: "490", Subfields: []z3950.Subfield{sf('a', "해리 포터 ;"), sf('v', "1")}},
		{Tag: "700", Subfields: []z3950.Subfield{sf('a', "김혜원,"), sf('e', "역")}},
	})
}

func newTestPool(t *testing.T) *pool.Pool {
	p := pool.New(pool.Config{MaxIdle: 2, IdleTimeout: time.Minute}, nil)
	t.Cleanup(p.Close)
	return p
}

func TestZ3950Source_Search(t *testing.T) {
	srv := z3950test.NewServer(t, z3950test.Normal, kolisRecord("KMO200012345"), kolisRecord(""))
	src := NewZ3950Source(Z3950Target{Name: "kolis", Host: srv.Host, Port: srv.Port, Database: "KOLIS"}, newTestPool(t))

	assert.Equal(t, "Z3950.kolis", src.ID())

	books, err := src.Search(context.Background(), "해리 포터")
	require.NoError(t, err)
	require.Len(t, books, 2)

	b := books[0]
	assert.Equal(t, "Z3950.kolis::KMO200012345", b.ID)
	assert.Equal(t, "해리 포터와 마법사의 돌", b.Title)
	assert.Equal(t, "롤링, J.K.; 김혜원", b.Authors)
	assert.Equal(t, "문학수첩", b.Publisher)
	assert.Equal(t, "2000", b.PublicationYear)
	assert.Equal(t, "9788983920683", b.ISBN)
	assert.Equal(t, "9788983920669", b.SetISBN)
	assert.Equal(t, "843", b.KDC)
	assert.Equal(t, "1", b.Vol)
	assert.Empty(t, b.Link)
	require.NotNil(t, b.Library)
	assert.Equal(t, "Z3950.kolis::kolis", b.Library.ID)
	assert.Equal(t, "kolis", b.Library.Name)

	assert.Equal(t, "Z3950.kolis::2", books[1].ID, "records without 001 fall back to their position")
	assert.Equal(t, []string{"해리 포터"}, srv.Terms())
}

func TestZ3950Source_ReusesSessions(t *testing.T) {
	srv := z3950test.NewServer(t, z3950test.Normal, kolisRecord("A"))
	src := NewZ3950Source(Z3950Target{Name: "kolis", Host: srv.Host, Port: srv.Port, Database: "KOLIS"}, newTestPool(t))

	for i := 0; i < 3; i++ {
		_, err := src.Search(context.Background(), "go")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, srv.Inits())
}

func TestZ3950Source_MaxRecords(t *testing.T) {
	srv := z3950test.NewServer(t, z3950test.Normal, kolisRecord("A"), kolisRecord("B"), kolisRecord("C"))
	src := NewZ3950Source(Z3950Target{Name: "t", Host: srv.Host, Port: srv.Port, Database: "D", MaxRecords: 2}, newTestPool(t))

	books, err := src.Search(context.Background(), "go")
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Z3950.t::B", books[1].ID)
}

func TestZ3950Source_NoHits(t *testing.T) {
	srv := z3950test.NewServer(t, z3950test.Normal)
	src := NewZ3950Source(Z3950Target{Name: "t", Host: srv.Host, Port: srv.Port, Database: "D"}, newTestPool(t))

	books, err := src.Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestZ3950Source_Failures(t *testing.T) {
	tests := []struct {
		name     string
		behavior z3950test.Behavior
		op       string
		is       error
	}{
		{"init rejected", z3950test.RejectInit, OpStatus, z3950.ErrInitRejected},
		{"server close", z3950test.CloseOnSearch, OpStatus, z3950.ErrServerClosed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := z3950test.NewServer(t, tc.behavior)
			p := newTestPool(t)
			src := NewZ3950Source(Z3950Target{Name: "t", Host: srv.Host, Port: srv.Port, Database: "D"}, p)

			books, err := src.Search(context.Background(), "go")
			assert.Nil(t, books)
			se, ok := IsSourceError(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, "Z3950.t", se.Source)
			assert.Equal(t, tc.op, se.Op)
			assert.True(t, errors.Is(err, tc.is))
			assert.Zero(t, p.Idle(srv.Host, srv.Port))
		})
	}
}

func TestZ3950Source_ContextCancel(t *testing.T) {
	srv := z3950test.NewServer(t, z3950test.HangOnSearch)
	src := NewZ3950Source(Z3950Target{Name: "t", Host: srv.Host, Port: srv.Port, Database: "D"}, newTestPool(t))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := src.Search(ctx, "go")
	se, ok := IsSourceError(err)
	require.True(t, ok)
	assert.Equal(t, OpTransport, se.Op)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestZ3950Source_Unreachable(t *testing.T) {
	src := NewZ3950Source(Z3950Target{Name: "t", Host: "127.0.0.1", Port: 1, Database: "D"}, newTestPool(t))
	_, err := src.Search(context.Background(), "go")
	se, ok := IsSourceError(err)
	require.True(t, ok)
	assert.Equal(t, OpTransport, se.Op)
}
