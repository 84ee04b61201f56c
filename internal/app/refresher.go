package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/five82/atlas/internal/restcountries"
	"github.com/five82/atlas/internal/state"
)

const (
	defaultRefreshInterval = time.Hour
	retryInterval          = 2 * time.Second
	maxBackoff             = 30 * time.Second
)

// runRefresher loads the catalog immediately, then every interval. Failed
// loads are retried with exponential backoff until one succeeds.
func runRefresher(ctx context.Context, store *state.Store, source restcountries.Source, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		wait := interval
		if err := refresh(ctx, store, source, logger); err != nil {
			if ctx.Err() != nil {
				return
			}
			failures := store.Snapshot().ConsecutiveFailures
			wait = calculateBackoff(failures, retryInterval)
			logger.Warn("catalog load failed",
				zap.Int("failures", failures),
				zap.Duration("retry_in", wait),
				zap.Error(err),
			)
		}
		timer.Reset(wait)
	}
}

func refresh(ctx context.Context, store *state.Store, source restcountries.Source, logger *zap.Logger) error {
	start := time.Now()
	countries, err := source.FetchAll(ctx)
	if err != nil {
		store.Update(nil, err)
		return err
	}
	store.Update(countries, nil)
	logger.Info("catalog loaded",
		zap.Int("countries", len(countries)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// calculateBackoff doubles base for every consecutive failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
