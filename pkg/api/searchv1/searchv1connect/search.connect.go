// Package searchv1connect wires the heek.lihee.Search service to connect
// handlers and clients.
//
// Messages are plain Go structs and travel as JSON only: Connect requests
// use application/json and gRPC requests application/grpc+json. A stock
// protoc-generated heek.lihee.Search client sends protobuf bodies
// (application/grpc or application/grpc+proto); those cannot be decoded
// into these types and the call fails with InvalidArgument.
package searchv1connect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	searchv1 "github.com/yourusername/lihee-search/pkg/api/searchv1"
)

const SearchName = "heek.lihee.Search"

const (
	SearchGetBooksProcedure = "/heek.lihee.Search/GetBooks"
)

// SearchClient is a client for the heek.lihee.Search service.
type SearchClient interface {
	GetBooks(context.Context, *connect.Request[searchv1.GetBooksPayload]) (*connect.ServerStreamForClient[searchv1.Book], error)
}

// NewSearchClient speaks the Connect protocol with the JSON codec by default.
// Pass connect.WithGRPC() for gRPC.
func NewSearchClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) SearchClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(searchv1.Codec{})}, opts...)
	return &searchClient{
		getBooks: connect.NewClient[searchv1.GetBooksPayload, searchv1.Book](
			httpClient,
			baseURL+SearchGetBooksProcedure,
			opts...,
		),
	}
}

type searchClient struct {
	getBooks *connect.Client[searchv1.GetBooksPayload, searchv1.Book]
}

func (c *searchClient) GetBooks(ctx context.Context, req *connect.Request[searchv1.GetBooksPayload]) (*connect.ServerStreamForClient[searchv1.Book], error) {
	return c.getBooks.CallServerStream(ctx, req)
}

// SearchHandler is implemented by the server.
type SearchHandler interface {
	GetBooks(context.Context, *connect.Request[searchv1.GetBooksPayload], *connect.ServerStream[searchv1.Book]) error
}

// NewSearchHandler returns the mount path and handler for svc.
func NewSearchHandler(svc SearchHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(searchv1.Codec{})}, opts...)
	getBooks := connect.NewServerStreamHandler(
		SearchGetBooksProcedure,
		svc.GetBooks,
		opts...,
	)
	return "/" + SearchName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SearchGetBooksProcedure:
			getBooks.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
