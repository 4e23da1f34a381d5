package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/token-gate/internal/repository"
)

// TokenPurgeWorker periodically removes expired token records. Reads already
// treat expired records as absent, so the sweep only reclaims space.
type TokenPurgeWorker struct {
	store    repository.TokenStore
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewTokenPurgeWorker builds a worker. timeout bounds each sweep; zero means
// no bound beyond the parent context.
func NewTokenPurgeWorker(store repository.TokenStore, interval, timeout time.Duration, logger *zap.Logger) *TokenPurgeWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenPurgeWorker{
		store:    store,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps on every tick until ctx is canceled. A non-positive interval
// disables the worker.
func (w *TokenPurgeWorker) Run(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("token purge disabled")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.PurgeOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.Warn("token purge failed", zap.Error(err))
			}
		}
	}
}

// PurgeOnce runs a single sweep and returns the number of records removed.
func (w *TokenPurgeWorker) PurgeOnce(ctx context.Context) (int64, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	removed, err := w.store.PurgeExpired(ctx, w.now())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		w.logger.Info("expired tokens purged", zap.Int64("count", removed))
	}
	return removed, nil
}
