package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/yourusername/lihee-search/pkg/aggregator"
	searchv1 "github.com/yourusername/lihee-search/pkg/api/searchv1"
)

var errEmptyKeyword = errors.New("keyword must not be empty")

// SearchServer implements heek.lihee.Search.
type SearchServer struct {
	agg    *aggregator.Aggregator
	logger *slog.Logger
}

func NewSearchServer(agg *aggregator.Aggregator, logger *slog.Logger) *SearchServer {
	return &SearchServer{agg: agg, logger: logger}
}

// GetBooks streams every Book the sources return for the keyword. Source
// failures never surface here; a stream whose sources all failed simply ends.
func (s *SearchServer) GetBooks(ctx context.Context, req *connect.Request[searchv1.GetBooksPayload], out *connect.ServerStream[searchv1.Book]) error {
	keyword := req.Msg.Keyword
	if strings.TrimSpace(keyword) == "" {
		return connect.NewError(connect.CodeInvalidArgument, errEmptyKeyword)
	}

	s.logger.Info("GetBooks started", "keyword", keyword, "protocol", req.Peer().Protocol)
	rx := s.agg.Start(ctx, keyword)
	// Stops the run if we leave early because the client went away.
	defer rx.Detach()

	for {
		b, err := rx.Recv(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := out.Send(searchv1.FromCatalog(b)); err != nil {
			s.logger.Warn("GetBooks send failed", "keyword", keyword, "error", err)
			return err
		}
	}
}
