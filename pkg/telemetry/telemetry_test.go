package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "json", "warn")
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("source failed", "source", "ES")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "source failed", rec["msg"])
	assert.Equal(t, "ES", rec["source"])
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{FormatText, FormatHuman, ""} {
		var buf bytes.Buffer
		logger, err := NewLogger(&buf, format, "debug")
		require.NoError(t, err, format)
		logger.Debug("hello", "k", "v")
		assert.Contains(t, buf.String(), "hello", format)
	}

	_, err := NewLogger(&bytes.Buffer{}, "xml", "info")
	assert.Error(t, err)
	_, err = NewLogger(&bytes.Buffer{}, "json", "loud")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	lvl, err = ParseLevel(" error ")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelError, lvl)
}

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SourceSearches.WithLabelValues("ES", OutcomeOK).Inc()
	m.RecordsEmitted.WithLabelValues("ES").Add(3)
	m.RunDuration.Observe(0.2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceSearches.WithLabelValues("ES", OutcomeOK)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecordsEmitted.WithLabelValues("ES")))

	n, err := testutil.GatherAndCount(reg, "lihee_search_run_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInitTracer_NoExporter(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracerConfig{ServiceName: "test"})
	require.NoError(t, err)
	defer shutdown(context.Background())

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}
