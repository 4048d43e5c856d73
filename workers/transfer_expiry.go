// workers/transfer_expiry.go
package workers

import (
	"context"
	"fmt"
	"time"

	"wallet-trust-system/models"
	"wallet-trust-system/repository"
	"wallet-trust-system/services"

	"go.uber.org/zap"
)

// TransferExpiryWorker cancels open transfers nobody resolved within TTL.
// Each one is cancelled by its originator so the usual privilege checks,
// events and metrics apply.
type TransferExpiryWorker struct {
	Core      *services.Core
	Transfers repository.TransferStore
	TTL       time.Duration
	BatchSize int
	Logger    *zap.Logger
}

func NewTransferExpiryWorker(core *services.Core, ttl time.Duration, logger *zap.Logger) *TransferExpiryWorker {
	return &TransferExpiryWorker{
		Core:      core,
		Transfers: core.Transfers,
		TTL:       ttl,
		BatchSize: 500,
		Logger:    logger,
	}
}

// RunOnce cancels transfers created before now minus TTL and reports how many it cancelled.
func (w *TransferExpiryWorker) RunOnce(ctx context.Context, now time.Time) (int, error) {
	stale, err := w.Transfers.GetByFilter(ctx, repository.TransferFilter{
		States:        []models.TransferState{models.TransferStatePending, models.TransferStateRequested},
		CreatedBefore: now.Add(-w.TTL),
		Limit:         w.BatchSize,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to load stale transfers: %w", err)
	}

	cancelled := 0
	for _, t := range stale {
		if ctx.Err() != nil {
			return cancelled, ctx.Err()
		}
		originator, err := w.Core.Wallet(ctx, t.OriginatorEntityID)
		if err != nil {
			w.Logger.Warn("[EXPIRY] originator unavailable", zap.Uint("transfer_id", t.ID), zap.Error(err))
			continue
		}
		if _, err := originator.CancelTransfer(ctx, t.ID); err != nil {
			// resolved concurrently, or the originator lost control; either way leave it
			w.Logger.Info("[EXPIRY] skipped transfer", zap.Uint("transfer_id", t.ID), zap.Error(err))
			continue
		}
		cancelled++
	}

	if cancelled > 0 {
		w.Logger.Info("[EXPIRY] cancelled stale transfers",
			zap.Int("count", cancelled),
			zap.Duration("ttl", w.TTL),
		)
	}
	return cancelled, nil
}

// Run is the scheduler entry point.
func (w *TransferExpiryWorker) Run(ctx context.Context) {
	if _, err := w.RunOnce(ctx, time.Now().UTC()); err != nil {
		w.Logger.Error("[EXPIRY] run failed", zap.Error(err))
	}
}
