package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestClassifyDBErr(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: &pgconn.PgError{Code: "23505"}, want: "unique_violation"},
		{err: fmt.Errorf("users.update: %w", &pgconn.PgError{Code: "57014"}), want: "query_canceled"},
		{err: &pgconn.PgError{Code: "53300"}, want: "too_many_connections"},
		{err: &pgconn.PgError{Code: "08006"}, want: "connection"},
		{err: &pgconn.PgError{Code: "42703"}, want: "schema"},
		{err: &pgconn.PgError{Code: "22P02"}, want: "pg_22P02"},
		{err: fmt.Errorf("users.find: %w", context.DeadlineExceeded), want: "timeout"},
		{err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), want: "connection"},
		{err: errors.New("boom"), want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyDBErr(tt.err))
		})
	}
}

func TestObserveDB_CountsErrorsButNotMisses(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	require.ErrorIs(t, p.ObserveDB("users.find", func() error { return user.ErrNotFound }), user.ErrNotFound)
	require.Error(t, p.ObserveDB("users.insert", func() error { return &pgconn.PgError{Code: "23505"} }))
	require.NoError(t, p.ObserveDB("users.update", func() error { return nil }))

	assert.Equal(t, float64(0), testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.find", "unknown")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.insert", "unique_violation")))
}

func TestObserveDB_NilPromRunsFn(t *testing.T) {
	var p *Prom
	called := false

	require.NoError(t, p.ObserveDB("users.find", func() error { called = true; return nil }))
	assert.True(t, called)
	p.ObserveSignup("created")
}

func TestLogger_AddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "prod")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	log.InfoContext(ctx, "hello")
	log.Debug("dropped at info level")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", rec["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", rec["span_id"])
}

func TestInitTracer_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracingConfig{ServiceName: "profilehub"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}
