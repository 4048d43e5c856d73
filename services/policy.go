package services

import (
	"context"

	"wallet-trust-system/models"
)

// TrustRequestPolicy lets the target wallet veto an incoming trust request
// before it is recorded. Returning an error rejects the request.
type TrustRequestPolicy interface {
	ReviewTrustRequest(ctx context.Context, target *Wallet, req *models.TrustRelationship) error
}

// ControlPolicy decides whether one wallet may act on behalf of another.
type ControlPolicy interface {
	HasControlOver(ctx context.Context, actorID, candidateID uint) (bool, error)
}

// TransferPrivilegePolicy authorizes resolution of an existing transfer.
// Each method returns an ErrForbidden-wrapped error when the actor may not proceed.
type TransferPrivilegePolicy interface {
	CanAccept(ctx context.Context, actor *Wallet, t *models.Transfer) error
	CanDecline(ctx context.Context, actor *Wallet, t *models.Transfer) error
	CanCancel(ctx context.Context, actor *Wallet, t *models.Transfer) error
	CanFulfill(ctx context.Context, actor *Wallet, t *models.Transfer) error
}

// AcceptAllTrustRequests never vetoes.
type AcceptAllTrustRequests struct{}

func (AcceptAllTrustRequests) ReviewTrustRequest(context.Context, *Wallet, *models.TrustRelationship) error {
	return nil
}

// IdentityControl grants control over a wallet only to itself.
// Sub-wallet delegation would extend this; until then no other wallet is controlled.
type IdentityControl struct{}

func (IdentityControl) HasControlOver(_ context.Context, actorID, candidateID uint) (bool, error) {
	return actorID != 0 && actorID == candidateID, nil
}

// OwnershipPrivileges only lets the party a transfer waits on resolve it:
// the destination accepts or declines a pending transfer, the source fulfills a
// requested one, and the originator may cancel while it is open.
type OwnershipPrivileges struct {
	Control ControlPolicy
}

func (p OwnershipPrivileges) controls(ctx context.Context, actor *Wallet, walletID uint) error {
	ok, err := p.Control.HasControlOver(ctx, actor.ID(), walletID)
	if err != nil {
		return err
	}
	if !ok {
		return forbidden("wallet %d has no control over wallet %d", actor.ID(), walletID)
	}
	return nil
}

func requireState(t *models.Transfer, allowed ...models.TransferState) error {
	for _, s := range allowed {
		if t.State == s {
			return nil
		}
	}
	return forbidden("wrong state: transfer %d is %s", t.ID, t.State)
}

func (p OwnershipPrivileges) CanAccept(ctx context.Context, actor *Wallet, t *models.Transfer) error {
	if err := p.controls(ctx, actor, t.DestinationEntityID); err != nil {
		return err
	}
	return requireState(t, models.TransferStatePending)
}

func (p OwnershipPrivileges) CanDecline(ctx context.Context, actor *Wallet, t *models.Transfer) error {
	if err := p.controls(ctx, actor, t.DestinationEntityID); err != nil {
		return err
	}
	return requireState(t, models.TransferStatePending)
}

func (p OwnershipPrivileges) CanCancel(ctx context.Context, actor *Wallet, t *models.Transfer) error {
	if err := p.controls(ctx, actor, t.OriginatorEntityID); err != nil {
		return err
	}
	return requireState(t, models.TransferStatePending, models.TransferStateRequested)
}

func (p OwnershipPrivileges) CanFulfill(_ context.Context, actor *Wallet, t *models.Transfer) error {
	if t.SourceEntityID != actor.ID() {
		return forbidden("only the source wallet %d may fulfill transfer %d", t.SourceEntityID, t.ID)
	}
	return requireState(t, models.TransferStateRequested)
}
