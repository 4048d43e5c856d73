// services/transfer.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-trust-system/events"
	"wallet-trust-system/metrics"
	"wallet-trust-system/models"
	"wallet-trust-system/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type TransferOutcome string

const (
	// TransferOutcomeExecuted: trust held and the movement was handed to the executor.
	TransferOutcomeExecuted TransferOutcome = "executed"
	// TransferOutcomeDeferred: a transfer record was persisted and awaits the other party.
	// This is not an error and must not be retried.
	TransferOutcomeDeferred TransferOutcome = "deferred"
)

type TransferResult struct {
	Outcome      TransferOutcome  `json:"outcome"`
	Transfer     *models.Transfer `json:"transfer,omitempty"`
	ExecutionKey string           `json:"execution_key,omitempty"`
}

func (r *TransferResult) Deferred() bool {
	return r.Outcome == TransferOutcomeDeferred
}

// AttemptTransfer moves amount from sender to receiver if this wallet holds send
// trust for the pair. Without trust the attempt is queued when this wallet controls
// one side: as pending (receiver must accept) when it controls the sender, or as
// requested (sender must fulfill) when it controls the receiver.
func (w *Wallet) AttemptTransfer(ctx context.Context, sender, receiver *Wallet, amount decimal.Decimal) (*TransferResult, error) {
	if !amount.IsPositive() {
		return nil, invalidInput("amount must be positive, got %s", amount)
	}
	if sender.ID() == receiver.ID() {
		return nil, invalidInput("sender and receiver must be different wallets")
	}

	err := w.CheckTrust(ctx, models.TrustRequestSend, sender, receiver)
	if err == nil {
		return w.executeTrusted(ctx, sender, receiver, amount)
	}
	if !errors.Is(err, ErrForbidden) {
		return nil, err
	}

	controlsSender, err := w.HasControlOver(ctx, sender)
	if err != nil {
		return nil, err
	}
	if controlsSender {
		return w.queue(ctx, sender, receiver, amount, models.TransferStatePending)
	}

	controlsReceiver, err := w.HasControlOver(ctx, receiver)
	if err != nil {
		return nil, err
	}
	if controlsReceiver {
		return w.queue(ctx, sender, receiver, amount, models.TransferStateRequested)
	}

	metrics.TransferOutcomes.WithLabelValues("rejected").Inc()
	return nil, forbidden("not supported: wallet %d has no trust for and no control over wallets %d and %d",
		w.ID(), sender.ID(), receiver.ID())
}

func (w *Wallet) executeTrusted(ctx context.Context, sender, receiver *Wallet, amount decimal.Decimal) (*TransferResult, error) {
	exec := &models.TransferExecution{
		IdempotencyKey:      "attempt:" + uuid.NewString(),
		SourceEntityID:      sender.ID(),
		DestinationEntityID: receiver.ID(),
		Amount:              amount,
	}
	if err := w.core.Executor.Execute(ctx, exec); err != nil {
		return nil, fmt.Errorf("failed to execute transfer from %d to %d: %w", sender.ID(), receiver.ID(), storeErr(err))
	}

	metrics.TransferOutcomes.WithLabelValues(string(TransferOutcomeExecuted)).Inc()
	w.core.Logger.Info("[TRANSFER] executed under trust",
		zap.Uint("acting_wallet", w.ID()),
		zap.Uint("source", sender.ID()),
		zap.Uint("destination", receiver.ID()),
		zap.String("amount", amount.String()),
		zap.String("execution_key", exec.IdempotencyKey),
	)
	w.core.publish(ctx, events.TransferExecuted, w.ID(), 0, exec)
	return &TransferResult{Outcome: TransferOutcomeExecuted, ExecutionKey: exec.IdempotencyKey}, nil
}

func (w *Wallet) queue(ctx context.Context, sender, receiver *Wallet, amount decimal.Decimal, state models.TransferState) (*TransferResult, error) {
	t := &models.Transfer{
		OriginatorEntityID:  w.ID(),
		SourceEntityID:      sender.ID(),
		DestinationEntityID: receiver.ID(),
		Amount:              amount,
		State:               state,
	}
	if err := w.core.Transfers.Create(ctx, t); err != nil {
		return nil, storeErr(err)
	}

	metrics.TransferOutcomes.WithLabelValues("deferred_" + string(state)).Inc()
	w.core.Logger.Info("[TRANSFER] deferred pending trust",
		zap.Uint("transfer_id", t.ID),
		zap.String("state", string(state)),
		zap.Uint("source", sender.ID()),
		zap.Uint("destination", receiver.ID()),
	)
	w.core.publish(ctx, events.TransferDeferred, w.ID(), t.ID, t)
	return &TransferResult{Outcome: TransferOutcomeDeferred, Transfer: t}, nil
}

// PendingTransfers lists pending transfers waiting on this wallet's decision.
func (w *Wallet) PendingTransfers(ctx context.Context) ([]models.Transfer, error) {
	transfers, err := w.core.Transfers.GetPendingTransfers(ctx, w.ID())
	if err != nil {
		return nil, storeErr(err)
	}
	return transfers, nil
}

// Transfers lists transfers this wallet originated, sends or receives,
// narrowed to states when any are given.
func (w *Wallet) Transfers(ctx context.Context, states ...models.TransferState) ([]models.Transfer, error) {
	for _, s := range states {
		if !s.Valid() {
			return nil, invalidInput("unknown transfer state %q", s)
		}
	}
	transfers, err := w.core.Transfers.GetByFilter(ctx, repository.TransferFilter{
		WalletID: w.ID(),
		States:   states,
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return transfers, nil
}

func (w *Wallet) loadTransfer(ctx context.Context, id uint) (*models.Transfer, error) {
	t, err := w.core.Transfers.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return t, nil
}

// AcceptTransfer completes a pending transfer addressed to this wallet.
func (w *Wallet) AcceptTransfer(ctx context.Context, id uint) (*models.Transfer, error) {
	t, err := w.loadTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := w.core.Privileges.CanAccept(ctx, w, t); err != nil {
		return nil, err
	}
	return w.complete(ctx, t)
}

// DeclineTransfer cancels a pending transfer addressed to this wallet.
func (w *Wallet) DeclineTransfer(ctx context.Context, id uint) (*models.Transfer, error) {
	t, err := w.loadTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := w.core.Privileges.CanDecline(ctx, w, t); err != nil {
		return nil, err
	}
	return w.cancel(ctx, t)
}

// CancelTransfer withdraws an open transfer this wallet originated.
func (w *Wallet) CancelTransfer(ctx context.Context, id uint) (*models.Transfer, error) {
	t, err := w.loadTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := w.core.Privileges.CanCancel(ctx, w, t); err != nil {
		return nil, err
	}
	return w.cancel(ctx, t)
}

// FulfillTransfer completes a requested transfer; only its source may do so.
func (w *Wallet) FulfillTransfer(ctx context.Context, id uint) (*models.Transfer, error) {
	t, err := w.loadTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := w.core.Privileges.CanFulfill(ctx, w, t); err != nil {
		return nil, err
	}
	return w.complete(ctx, t)
}

func (w *Wallet) cancel(ctx context.Context, t *models.Transfer) (*models.Transfer, error) {
	from := t.State
	if err := t.Transition(models.TransferStateCancelled, time.Now().UTC()); err != nil {
		return nil, storeErr(err)
	}
	if err := w.core.Transfers.Update(ctx, t); err != nil {
		return nil, storeErr(err)
	}
	w.transitioned(ctx, t, from, events.TransferCancelled)
	return t, nil
}

const rollbackTimeout = 5 * time.Second

// complete claims the transfer by moving it to completed, then hands the movement
// to the executor keyed by transfer id. If the executor fails the claim is rolled
// back so the transfer stays open.
func (w *Wallet) complete(ctx context.Context, t *models.Transfer) (*models.Transfer, error) {
	prev := *t
	if err := t.Transition(models.TransferStateCompleted, time.Now().UTC()); err != nil {
		return nil, storeErr(err)
	}
	if err := w.core.Transfers.Update(ctx, t); err != nil {
		return nil, storeErr(err)
	}

	id := t.ID
	exec := &models.TransferExecution{
		IdempotencyKey:      fmt.Sprintf("transfer:%d", t.ID),
		TransferID:          &id,
		SourceEntityID:      t.SourceEntityID,
		DestinationEntityID: t.DestinationEntityID,
		Amount:              t.Amount,
	}
	if err := w.core.Executor.Execute(ctx, exec); err != nil {
		// the executor may have failed because ctx ended; the rollback must still land
		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer cancel()
		rollback := prev
		rollback.Version = t.Version
		if rbErr := w.core.Transfers.Update(rbCtx, &rollback); rbErr != nil {
			w.core.Logger.Error("[TRANSFER] rollback after failed execution did not apply",
				zap.Uint("transfer_id", t.ID),
				zap.Error(rbErr),
			)
		}
		return nil, fmt.Errorf("failed to execute transfer %d: %w", t.ID, storeErr(err))
	}

	w.transitioned(ctx, t, prev.State, events.TransferCompleted)
	return t, nil
}

func (w *Wallet) transitioned(ctx context.Context, t *models.Transfer, from models.TransferState, evType events.Type) {
	metrics.TransferTransitions.WithLabelValues(string(t.State)).Inc()
	w.core.Logger.Info("[TRANSFER] state changed",
		zap.Uint("transfer_id", t.ID),
		zap.Uint("wallet_id", w.ID()),
		zap.String("from", string(from)),
		zap.String("to", string(t.State)),
	)
	w.core.publish(ctx, evType, w.ID(), t.ID, t)
}
