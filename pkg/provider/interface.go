package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourusername/lihee-search/pkg/catalog"
)

// DataSource is a catalog backend that can answer a keyword search.
//
// Implementations are shared by every in-flight request and must be safe for
// concurrent use. Search is all-or-nothing: it returns every match the
// backend reported, in backend order, or an error and no Books.
type DataSource interface {
	// ID is the namespace prefixed to every Book and Library id the source
	// produces.
	ID() string

	// Search runs keyword against the backend. The keyword is passed as-is;
	// embedding it safely in the backend's query language is the
	// implementation's job.
	Search(ctx context.Context, keyword string) ([]catalog.Book, error)
}

// Failure stages reported in SourceError.Op.
const (
	OpTransport = "transport"
	OpStatus    = "status"
	OpDecode    = "decode"
	OpQuery     = "query"
	OpRateLimit = "ratelimit"
)

// SourceError is the single failure value a DataSource returns.
type SourceError struct {
	Source string
	Op     string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func sourceErr(source, op string, err error) error {
	return &SourceError{Source: source, Op: op, Err: err}
}

// IsSourceError reports whether err carries a SourceError and returns it.
func IsSourceError(err error) (*SourceError, bool) {
	var se *SourceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
