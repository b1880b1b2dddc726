// Package remote implements the Store interface against the managed
// PostgreSQL database. Every query is retried with a linear backoff before
// the error is handed to the adapter's fallback policy.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/eventsx/backend/internal/metrics"
	"github.com/eventsx/backend/internal/store"
)

const uniqueViolation = "23505"

// Store is the remote PostgreSQL implementation of store.Store.
type Store struct {
	pool       *pgxpool.Pool
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
}

// New creates a remote store. maxRetries and retryDelay tune the per-query
// retry policy; zero values fall back to 3 attempts with a 1s base delay.
func New(pool *pgxpool.Pool, logger *zap.Logger, maxRetries int, retryDelay time.Duration) *Store {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &Store{pool: pool, logger: logger, maxRetries: maxRetries, retryDelay: retryDelay}
}

// HealthCheck runs the trivial probe query. No retry: the probe is meant to
// answer quickly so the adapter can pick a mode.
func (s *Store) HealthCheck(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

// withRetry runs fn up to maxRetries times, sleeping attempt*retryDelay
// between failures. Domain errors are returned immediately; retrying a
// duplicate-key conflict cannot succeed.
func (s *Store) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if store.IsDomainError(lastErr) {
			return lastErr
		}
		if attempt < s.maxRetries {
			metrics.RemoteRetries.Inc()
			s.logger.Warn("remote query failed, retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(time.Duration(attempt) * s.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, s.maxRetries, lastErr)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
