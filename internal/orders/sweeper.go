package orders

import (
	"context"
	"log/slog"
	"time"
)

const sweepLockKey = "lock:orders:completion-sweep"

type Completer interface {
	CompleteDue(ctx context.Context) (int, error)
}

// Locker hands out a lease shared between replicas.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), ok bool, err error)
}

// Sweeper completes due Delivered orders once at start and then on every tick.
type Sweeper struct {
	completer Completer
	locker    Locker
	interval  time.Duration
	logger    *slog.Logger
}

// NewSweeper returns a sweeper. locker may be nil for a single replica.
func NewSweeper(completer Completer, locker Locker, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		completer: completer,
		locker:    locker,
		interval:  interval,
		logger:    logger,
	}
}

// Run blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass. Errors are logged and retried on the next tick.
func (s *Sweeper) Sweep(ctx context.Context) {
	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, sweepLockKey, s.interval)
		if err != nil {
			s.logger.Warn("sweep lock unavailable, sweeping without it", "error", err)
		} else if !ok {
			s.logger.Debug("sweep skipped, another replica holds the lock")
			return
		} else {
			defer release(context.WithoutCancel(ctx))
		}
	}

	n, err := s.completer.CompleteDue(ctx)
	if err != nil {
		s.logger.Error("completion sweep failed", "error", err, "completed", n)
		return
	}
	if n > 0 {
		s.logger.Info("completion sweep finished", "completed", n)
	}
}
