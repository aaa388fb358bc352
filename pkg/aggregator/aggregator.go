// Package aggregator fans a keyword out to every registered data source and
// streams the merged results to a single consumer.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourusername/lihee-search/pkg/catalog"
	"github.com/yourusername/lihee-search/pkg/provider"
	"github.com/yourusername/lihee-search/pkg/stream"
	"github.com/yourusername/lihee-search/pkg/telemetry"
)

const tracerName = "github.com/yourusername/lihee-search/pkg/aggregator"

// Aggregator drives its sources one after another, in registration order.
// The source list is fixed at construction and shared by every run.
type Aggregator struct {
	sources  []provider.DataSource
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	capacity int
}

type Option func(*Aggregator)

func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithMetrics records per-source outcomes and run durations.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(a *Aggregator) { a.tracer = t }
}

// WithCapacity sets the stream buffer size used by Start.
func WithCapacity(n int) Option {
	return func(a *Aggregator) { a.capacity = n }
}

func New(sources []provider.DataSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		sources:  append([]provider.DataSource(nil), sources...),
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		capacity: stream.DefaultCapacity,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SourceIDs lists the registered sources in order.
func (a *Aggregator) SourceIDs() []string {
	ids := make([]string, len(a.sources))
	for i, s := range a.sources {
		ids[i] = s.ID()
	}
	return ids
}

// Stats summarizes one run.
type Stats struct {
	RequestID string
	Attempted int
	Failed    int
	Emitted   int
	Cancelled bool
	Duration  time.Duration
}

// Start runs the fan-out on its own goroutine and returns the consuming end
// at once. Detaching the receiver cancels the run, including any source
// call in flight.
func (a *Aggregator) Start(ctx context.Context, keyword string) *stream.Receiver[catalog.Book] {
	out, in := stream.New[catalog.Book](a.capacity)
	go a.Run(ctx, keyword, out)
	return in
}

// Run queries every source and sends successful results to out, closing it
// when done. A failing source is logged and skipped; a detached consumer or
// ended ctx stops the run before the next source call.
func (a *Aggregator) Run(ctx context.Context, keyword string, out *stream.Sender[catalog.Book]) Stats {
	defer out.Close()

	stats := Stats{RequestID: uuid.NewString()}
	start := time.Now()
	logger := a.logger.With("request_id", stats.RequestID)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func(done <-chan struct{}) {
		select {
		case <-out.Detached():
			cancel()
		case <-done:
		}
	}(runCtx.Done())

	ctx, span := a.tracer.Start(runCtx, "aggregator.run", trace.WithAttributes(
		attribute.String("request.id", stats.RequestID),
		attribute.Int("source.count", len(a.sources)),
	))
	defer span.End()

	if a.metrics != nil {
		a.metrics.RunsInFlight.Inc()
		defer a.metrics.RunsInFlight.Dec()
	}

run:
	for _, src := range a.sources {
		if ctx.Err() != nil {
			stats.Cancelled = true
			break
		}

		stats.Attempted++
		books, err := a.search(ctx, src, keyword)
		if err != nil {
			if ctx.Err() != nil {
				stats.Cancelled = true
				break
			}
			stats.Failed++
			logger.Warn("source failed", "source", src.ID(), "keyword", keyword, "error", err)
			continue
		}

		for _, b := range books {
			if err := out.Send(ctx, b); err != nil {
				stats.Cancelled = true
				break run
			}
			stats.Emitted++
			if a.metrics != nil {
				a.metrics.RecordsEmitted.WithLabelValues(src.ID()).Inc()
			}
		}
	}

	stats.Duration = time.Since(start)
	if a.metrics != nil {
		a.metrics.RunDuration.Observe(stats.Duration.Seconds())
	}
	span.SetAttributes(
		attribute.Int("result.count", stats.Emitted),
		attribute.Int("source.failed", stats.Failed),
		attribute.Bool("run.cancelled", stats.Cancelled),
	)
	logger.Info("search finished",
		"keyword", keyword,
		"attempted", stats.Attempted,
		"failed", stats.Failed,
		"emitted", stats.Emitted,
		"cancelled", stats.Cancelled,
		"duration", stats.Duration,
	)
	return stats
}

// search calls one source inside its own span. A panic in the source is
// reported as a failure of that source only.
func (a *Aggregator) search(ctx context.Context, src provider.DataSource, keyword string) (books []catalog.Book, err error) {
	ctx, span := a.tracer.Start(ctx, "source.search", trace.WithAttributes(attribute.String("source.id", src.ID())))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			books, err = nil, &provider.SourceError{Source: src.ID(), Op: provider.OpQuery, Err: fmt.Errorf("panic: %v", r)}
		}

		outcome := telemetry.OutcomeOK
		switch {
		case err != nil && ctx.Err() != nil:
			outcome = telemetry.OutcomeCancelled
		case err != nil:
			outcome = telemetry.OutcomeError
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("result.count", len(books)))
		span.End()

		if a.metrics != nil {
			a.metrics.SourceSearches.WithLabelValues(src.ID(), outcome).Inc()
			a.metrics.SourceDuration.WithLabelValues(src.ID()).Observe(time.Since(start).Seconds())
		}
	}()

	return src.Search(ctx, keyword)
}
