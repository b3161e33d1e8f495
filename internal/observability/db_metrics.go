package observability

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ObserveDB times fn under the logical operation name op. "Not found" is a
// normal outcome for lookups and is not counted as an error.
func (p *Prom) ObserveDB(op string, fn func() error) error {
	if p == nil {
		return fn()
	}

	start := time.Now()
	err := fn()

	status := "ok"

	if err != nil && !isNotFound(err) {
		status = "error"
		p.DbErrorsTotal.WithLabelValues(op, classifyDBErr(err)).Inc()
	}
	p.DbQueryDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, user.ErrNotFound)
}

// classifyDBErr buckets a store error into a low-cardinality label.
func classifyDBErr(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return "unique_violation"
		case pgErr.Code == "57014":
			return "query_canceled"
		case pgErr.Code == "53300":
			return "too_many_connections"
		case strings.HasPrefix(pgErr.Code, "08"):
			return "connection"
		case strings.HasPrefix(pgErr.Code, "42"):
			// schema drift: a missing column or table after a bad migration
			return "schema"
		default:
			return "pg_" + pgErr.Code
		}
	}

	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return "connection"
	}

	// pool errors often arrive as plain strings
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline") || strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "connection") || strings.Contains(msg, "dial"):
		return "connection"
	default:
		return "unknown"
	}
}
