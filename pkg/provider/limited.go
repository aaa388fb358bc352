package provider

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/yourusername/lihee-search/pkg/catalog"
)

// LimitedSource throttles calls to the wrapped source.
type LimitedSource struct {
	DataSource
	limiter *rate.Limiter
}

// Limited wraps src so at most rps searches start per second, with bursts
// of up to burst.
func Limited(src DataSource, rps float64, burst int) *LimitedSource {
	if burst < 1 {
		burst = 1
	}
	return &LimitedSource{DataSource: src, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Search waits for a token, then delegates. A wait that cannot finish
// before ctx ends fails without calling the source.
func (l *LimitedSource) Search(ctx context.Context, keyword string) ([]catalog.Book, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, sourceErr(l.ID(), OpRateLimit, err)
	}
	return l.DataSource.Search(ctx, keyword)
}
