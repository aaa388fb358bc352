package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourusername/lihee-search/pkg/config"
	"github.com/yourusername/lihee-search/pkg/index"
	"github.com/yourusername/lihee-search/pkg/provider"
	"github.com/yourusername/lihee-search/pkg/z3950/pool"
)

// buildSources resolves the configured data sources in registration order:
// Elasticsearch, SQL, local index, then Z39.50 targets. The returned
// closer releases every backend handle that was opened.
func buildSources(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]provider.DataSource, func() error, error) {
	var (
		sources []provider.DataSource
		closers []func() error
	)
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	fail := func(err error) ([]provider.DataSource, func() error, error) {
		_ = closeAll()
		return nil, nil, err
	}

	es, err := newElasticsearchSource(cfg.Elasticsearch)
	if err != nil {
		return fail(err)
	}
	sources = append(sources, limit(es, cfg.Elasticsearch.RateLimit))

	if cfg.SQL.Driver != "" {
		db, err := provider.OpenSQL(ctx, cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			return fail(fmt.Errorf("sql source: %w", err))
		}
		closers = append(closers, db.Close)
		src, err := provider.NewSQLSource(db, cfg.SQL.Driver, cfg.SQL.Table, cfg.SQL.Limit)
		if err != nil {
			return fail(fmt.Errorf("sql source: %w", err))
		}
		sources = append(sources, limit(src, cfg.SQL.RateLimit))
	}

	if cfg.Index.Path != "" {
		m, err := index.NewManager(cfg.Index.Path)
		if err != nil {
			return fail(fmt.Errorf("index source: %w", err))
		}
		closers = append(closers, m.Close)
		sources = append(sources, provider.NewIndexSource(m, cfg.Index.Limit))
	}

	if len(cfg.Z3950.Targets) > 0 {
		p := pool.New(pool.Config{MaxIdle: cfg.Z3950.Pool.MaxIdle, IdleTimeout: cfg.Z3950.Pool.IdleTimeout}, logger)
		closers = append(closers, func() error { p.Close(); return nil })
		for _, t := range cfg.Z3950.Targets {
			src := provider.NewZ3950Source(provider.Z3950Target{
				Name:       t.Name,
				Host:       t.Host,
				Port:       t.Port,
				Database:   t.Database,
				Encoding:   t.Encoding,
				MaxRecords: t.MaxRecords,
			}, p)
			sources = append(sources, limit(src, t.RateLimit))
		}
	}

	ids := make([]string, len(sources))
	for i, s := range sources {
		ids[i] = s.ID()
	}
	logger.Info("data sources registered", "sources", ids)
	return sources, closeAll, nil
}

func newElasticsearchSource(cfg config.ElasticsearchConfig) (*provider.ElasticsearchSource, error) {
	client, err := provider.NewElasticsearchClient(cfg.Host, nil)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch source: %w", err)
	}

	opts := provider.DefaultQueryOptions()
	if cfg.Index != "" {
		opts.Index = cfg.Index
	}
	if cfg.Analyzer != "" {
		opts.Analyzer = cfg.Analyzer
	}
	opts.Preferred = opts.Preferred[:0:0]
	for _, p := range cfg.PreferredLibraries {
		opts.Preferred = append(opts.Preferred, provider.TermBoost{Value: p.Code, Boost: p.Boost})
	}
	return provider.NewElasticsearchSource(client, opts, cfg.Timeout), nil
}

func limit(src provider.DataSource, rl config.RateLimit) provider.DataSource {
	if rl.RPS <= 0 {
		return src
	}
	return provider.Limited(src, rl.RPS, rl.Burst)
}
