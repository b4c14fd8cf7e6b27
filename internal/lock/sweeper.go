package lock

import (
	"context"
	"time"

	"github.com/tphakala/quotedesk/internal/errors"
	"github.com/tphakala/quotedesk/internal/logger"
)

// Sweeper periodically releases locks older than a fixed expiry. It is only
// started when an expiry is configured; by default locks never expire.
type Sweeper struct {
	svc      *Service
	expiry   time.Duration
	interval time.Duration
	log      logger.Logger
}

// NewSweeper creates a sweeper releasing locks older than expiry every interval.
func NewSweeper(svc *Service, expiry, interval time.Duration) (*Sweeper, error) {
	if svc == nil {
		return nil, errors.ValidationError("sweeper requires a lock service")
	}
	if expiry <= 0 {
		return nil, errors.ValidationError("sweeper expiry must be positive")
	}
	if interval <= 0 {
		return nil, errors.ValidationError("sweeper interval must be positive")
	}
	return &Sweeper{
		svc:      svc,
		expiry:   expiry,
		interval: interval,
		log:      svc.log.Module("sweeper"),
	}, nil
}

// SweepOnce releases every lock acquired before now minus the expiry.
func (sw *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := sw.svc.now().Add(-sw.expiry)
	released, err := sw.svc.ExpireBefore(ctx, cutoff)
	if released > 0 {
		sw.log.Info("expired stale locks",
			logger.Int64("released", released),
			logger.Time("cutoff", cutoff))
	}
	return released, err
}

// Run sweeps every interval until ctx is cancelled. Sweep failures are logged
// and retried on the next tick.
func (sw *Sweeper) Run(ctx context.Context) error {
	sw.log.Info("lock sweeper started",
		logger.Duration("expiry", sw.expiry),
		logger.Duration("interval", sw.interval))

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.log.Info("lock sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := sw.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				sw.log.Error("lock sweep failed", logger.Error(err))
			}
		}
	}
}
