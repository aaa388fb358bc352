package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/yourusername/lihee-search/pkg/catalog"
)

// SourceIDElasticsearch namespaces Books from the Elasticsearch catalog.
const SourceIDElasticsearch = "ES"

// FieldBoost is one multi_match field and its weight.
type FieldBoost struct {
	Field string
	Boost float64
}

func (f FieldBoost) String() string {
	if f.Boost == 0 || f.Boost == 1 {
		return f.Field
	}
	return f.Field + "^" + strconv.FormatFloat(f.Boost, 'g', -1, 64)
}

// TermBoost ranks documents whose preferred field equals Value higher. It
// never filters.
type TermBoost struct {
	Value string
	Boost float64
}

// QueryOptions controls how a keyword becomes an Elasticsearch query.
type QueryOptions struct {
	Index          string
	Analyzer       string
	Fields         []FieldBoost
	PreferredField string
	Preferred      []TermBoost
	// Size caps the hit count; zero leaves the server default.
	Size int
}

// DefaultQueryOptions is the catalog's Korean full-text setup: nori analyzed
// sub-fields weighted title > authors > publisher, with two preferred
// libraries boosted.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		Index:    "book",
		Analyzer: "nori-default",
		Fields: []FieldBoost{
			{Field: "title.nori", Boost: 1.1},
			{Field: "authors.nori", Boost: 1.0},
			{Field: "publisher.nori", Boost: 0.8},
		},
		PreferredField: "libCode",
		Preferred: []TermBoost{
			{Value: "111101", Boost: 2.0},
			{Value: "111470", Boost: 2.0},
		},
	}
}

// BuildQuery returns the request body for keyword.
func (o QueryOptions) BuildQuery(keyword string) map[string]any {
	fields := make([]string, len(o.Fields))
	for i, f := range o.Fields {
		fields[i] = f.String()
	}

	multiMatch := map[string]any{
		"fields": fields,
		"query":  keyword,
	}
	if o.Analyzer != "" {
		multiMatch["analyzer"] = o.Analyzer
	}

	should := make([]any, 0, len(o.Preferred))
	for _, p := range o.Preferred {
		should = append(should, map[string]any{
			"term": map[string]any{
				o.PreferredField: map[string]any{"value": p.Value, "boost": p.Boost},
			},
		})
	}

	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must":   map[string]any{"multi_match": multiMatch},
				"should": should,
			},
		},
	}
}

// NewElasticsearchClient connects to a single node. Client-side retries are
// disabled: a failed search is reported once and the source is skipped.
func NewElasticsearchClient(host string, transport http.RoundTripper) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{host},
		Transport:    transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client for %s: %w", host, err)
	}
	return client, nil
}

// ElasticsearchSource searches the book index of an Elasticsearch cluster.
type ElasticsearchSource struct {
	client  *elasticsearch.Client
	opts    QueryOptions
	timeout time.Duration
}

// NewElasticsearchSource wraps client. A zero timeout relies on ctx alone.
func NewElasticsearchSource(client *elasticsearch.Client, opts QueryOptions, timeout time.Duration) *ElasticsearchSource {
	return &ElasticsearchSource{client: client, opts: opts, timeout: timeout}
}

func (s *ElasticsearchSource) ID() string { return SourceIDElasticsearch }

type esResponse struct {
	Hits *struct {
		Hits []esHit `json:"hits"`
	} `json:"hits"`
}

type esHit struct {
	ID     string    `json:"_id"`
	Source *esSource `json:"_source"`
}

// esSource is one indexed document. Absent fields decode to their zero
// value; only a hit without _id or _source is rejected.
type esSource struct {
	AdditionSymbol  string `json:"additionSymbol"`
	Authors         string `json:"authors"`
	BookCount       int32  `json:"bookCount"`
	ISBN            string `json:"isbn"`
	KDC             string `json:"kdc"`
	LibCode         string `json:"libCode"`
	LoanCount       int32  `json:"loanCount"`
	PublicationYear string `json:"publicationYear"`
	Publisher       string `json:"publisher"`
	RegDate         string `json:"regDate"`
	SetISBN         string `json:"setIsbn"`
	Title           string `json:"title"`
	Vol             string `json:"vol"`
}

func (s *ElasticsearchSource) Search(ctx context.Context, keyword string) ([]catalog.Book, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(s.opts.BuildQuery(keyword)); err != nil {
		return nil, sourceErr(s.ID(), OpQuery, err)
	}

	es := s.client
	opts := []func(*esapi.SearchRequest){
		es.Search.WithContext(ctx),
		es.Search.WithIndex(s.opts.Index),
		es.Search.WithBody(&body),
	}
	if s.opts.Size > 0 {
		opts = append(opts, es.Search.WithSize(s.opts.Size))
	}

	res, err := es.Search(opts...)
	if err != nil {
		return nil, sourceErr(s.ID(), OpTransport, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, sourceErr(s.ID(), OpStatus, fmt.Errorf("%s: %s", res.Status(), bytes.TrimSpace(msg)))
	}

	var parsed esResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, sourceErr(s.ID(), OpDecode, err)
	}
	if parsed.Hits == nil {
		return nil, sourceErr(s.ID(), OpDecode, errors.New("response has no hits"))
	}

	books := make([]catalog.Book, 0, len(parsed.Hits.Hits))
	for i, h := range parsed.Hits.Hits {
		if h.ID == "" || h.Source == nil {
			return nil, sourceErr(s.ID(), OpDecode, fmt.Errorf("hit %d is missing _id or _source", i))
		}
		books = append(books, s.toBook(h))
	}
	return books, nil
}

func (s *ElasticsearchSource) toBook(h esHit) catalog.Book {
	src := h.Source
	return catalog.Book{
		ID:              catalog.NamespacedID(s.ID(), h.ID),
		Title:           src.Title,
		Authors:         src.Authors,
		Publisher:       src.Publisher,
		Library:         catalog.NewLibrary(s.ID(), src.LibCode),
		AdditionSymbol:  src.AdditionSymbol,
		BookCount:       src.BookCount,
		LoanCount:       src.LoanCount,
		ISBN:            src.ISBN,
		SetISBN:         src.SetISBN,
		KDC:             src.KDC,
		PublicationYear: src.PublicationYear,
		RegDate:         src.RegDate,
		Vol:             src.Vol,
	}
}
