package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionWarmer makes sure an account holds a usable vendor session.
type SessionWarmer interface {
	Warm(ctx context.Context, account string) error
}

// AccountSource lists the accounts to keep warm.
type AccountSource interface {
	Accounts(ctx context.Context) ([]string, error)
}

// EventPublisher emits the per-cycle summary event.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// TokenWarmer periodically re-validates vendor sessions so that tokens close
// to expiry are renewed off the request path.
type TokenWarmer struct {
	logger    *zap.Logger
	accounts  AccountSource
	warmer    SessionWarmer
	publisher EventPublisher
	subject   string
	interval  time.Duration
	timeout   time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewTokenWarmer constructs the job. publisher may be nil.
func NewTokenWarmer(logger *zap.Logger, accounts AccountSource, warmer SessionWarmer, publisher EventPublisher, subject string, interval time.Duration) *TokenWarmer {
	return &TokenWarmer{
		logger:    logger,
		accounts:  accounts,
		warmer:    warmer,
		publisher: publisher,
		subject:   subject,
		interval:  interval,
		timeout:   90 * time.Second,
		stopCh:    make(chan struct{}),
	}
}

// Start runs one cycle immediately and then one per interval until Stop or
// ctx cancellation.
func (w *TokenWarmer) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("token_warmer.started", zap.Duration("interval", w.interval))
	w.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-w.stopCh:
			w.logger.Info("token_warmer.stopped (manual stop)")
			return
		case <-ctx.Done():
			w.logger.Info("token_warmer.stopped (context canceled)")
			return
		}
	}
}

// Stop halts the loop. Safe to call more than once.
func (w *TokenWarmer) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// RunOnce warms every account and reports how many succeeded and failed.
func (w *TokenWarmer) RunOnce(ctx context.Context) (warmed, failed int) {
	start := time.Now()

	accounts, err := w.accounts.Accounts(ctx)
	if err != nil {
		w.logger.Warn("token_warmer.accounts_failed", zap.Error(err))
		return 0, 0
	}

	for _, account := range accounts {
		cctx, cancel := context.WithTimeout(ctx, w.timeout)
		err := w.warmer.Warm(cctx, account)
		cancel()
		if err != nil {
			failed++
			w.logger.Warn("token_warmer.warm_failed",
				zap.String("account", account),
				zap.Error(err))
			continue
		}
		warmed++
	}

	if w.publisher != nil && w.subject != "" {
		event := map[string]any{
			"event":       w.subject,
			"timestamp":   time.Now().UTC(),
			"warmed":      warmed,
			"failed":      failed,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if err := w.publisher.Publish(ctx, w.subject, event); err != nil {
			w.logger.Warn("token_warmer.publish_failed", zap.Error(err))
		}
	}

	w.logger.Info("token_warmer.cycle_complete",
		zap.Int("warmed", warmed),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)))
	return warmed, failed
}
