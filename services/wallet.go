// services/wallet.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wallet-trust-system/events"
	"wallet-trust-system/metrics"
	"wallet-trust-system/models"

	"go.uber.org/zap"
)

// Wallet is the aggregate every trust and transfer mutation goes through.
// The wallet it wraps is the acting, authorizing party.
type Wallet struct {
	core   *Core
	record models.Wallet
}

func (w *Wallet) ID() uint     { return w.record.ID }
func (w *Wallet) Name() string { return w.record.Name }

// Record returns a copy of the underlying row. Credential fields are excluded from JSON.
func (w *Wallet) Record() models.Wallet { return w.record }

// Authorize checks password against the stored HMAC and returns the wallet id.
func (w *Wallet) Authorize(password string) (uint, error) {
	if password == "" {
		return 0, invalidInput("password is required")
	}
	if !passwordMatches(password, w.record.Salt, w.record.PasswordHash) {
		return 0, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	return w.record.ID, nil
}

// HasControlOver reports whether this wallet may act on behalf of other.
func (w *Wallet) HasControlOver(ctx context.Context, other *Wallet) (bool, error) {
	return w.core.Control.HasControlOver(ctx, w.ID(), other.ID())
}

// RequestTrust asks the wallet named targetName to trust this wallet for requestType.
func (w *Wallet) RequestTrust(ctx context.Context, requestType, targetName string) (*models.TrustRelationship, error) {
	typ, ok := models.ParseTrustRequestType(requestType)
	if !ok {
		return nil, invalidInput("unknown trust request type %q", requestType)
	}
	if strings.TrimSpace(targetName) == "" {
		return nil, invalidInput("target wallet name is required")
	}

	target, err := w.core.WalletByName(ctx, targetName)
	if err != nil {
		return nil, err
	}
	if target.ID() == w.ID() {
		return nil, invalidInput("a wallet cannot request trust from itself")
	}

	mine, err := w.core.Trusts.GetByOriginatorID(ctx, w.ID())
	if err != nil {
		return nil, storeErr(err)
	}
	for _, r := range mine {
		if r.RequestType == typ && r.TargetEntityID == target.ID() && r.State.Blocking() {
			return nil, forbidden("already requested: %s trust from wallet %d is %s (relationship %d)",
				typ, target.ID(), r.State, r.ID)
		}
	}

	rel := &models.TrustRelationship{
		RequestType:        typ,
		ActorEntityID:      w.ID(),
		OriginatorEntityID: w.ID(),
		TargetEntityID:     target.ID(),
		State:              models.TrustStateRequested,
	}
	if err := w.core.TrustRules.ReviewTrustRequest(ctx, target, rel); err != nil {
		if !errors.Is(err, ErrForbidden) {
			err = fmt.Errorf("%w: trust request rejected by wallet %d: %v", ErrForbidden, target.ID(), err)
		}
		return nil, err
	}

	if err := w.core.Trusts.Create(ctx, rel); err != nil {
		return nil, storeErr(err)
	}

	metrics.TrustTransitions.WithLabelValues(string(rel.State)).Inc()
	w.core.Logger.Info("[TRUST] requested",
		zap.Uint("relationship_id", rel.ID),
		zap.String("type", string(typ)),
		zap.Uint("originator", w.ID()),
		zap.Uint("target", target.ID()),
	)
	w.core.publish(ctx, events.TrustRequested, w.ID(), rel.ID, rel)
	return rel, nil
}

// AcceptTrustRequest grants a request addressed to this wallet.
func (w *Wallet) AcceptTrustRequest(ctx context.Context, id uint) (*models.TrustRelationship, error) {
	return w.resolveIncoming(ctx, id, models.TrustStateTrusted, events.TrustAccepted)
}

// DeclineTrustRequest refuses a request addressed to this wallet.
func (w *Wallet) DeclineTrustRequest(ctx context.Context, id uint) (*models.TrustRelationship, error) {
	return w.resolveIncoming(ctx, id, models.TrustStateCanceledByTarget, events.TrustDeclined)
}

func (w *Wallet) resolveIncoming(ctx context.Context, id uint, next models.TrustState, evType events.Type) (*models.TrustRelationship, error) {
	incoming, err := w.core.Trusts.GetByTargetID(ctx, w.ID())
	if err != nil {
		return nil, storeErr(err)
	}
	var rel *models.TrustRelationship
	for i := range incoming {
		if incoming[i].ID == id {
			rel = &incoming[i]
			break
		}
	}
	if rel == nil {
		return nil, forbidden("trust relationship %d is not addressed to wallet %d", id, w.ID())
	}
	return w.transitionTrust(ctx, rel, next, evType)
}

// CancelTrustRequest withdraws a request this wallet originated.
func (w *Wallet) CancelTrustRequest(ctx context.Context, id uint) (*models.TrustRelationship, error) {
	rel, err := w.core.Trusts.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if rel.OriginatorEntityID != w.ID() {
		return nil, forbidden("trust relationship %d was not originated by wallet %d", id, w.ID())
	}
	return w.transitionTrust(ctx, rel, models.TrustStateCancelledByOriginator, events.TrustCancelled)
}

func (w *Wallet) transitionTrust(ctx context.Context, rel *models.TrustRelationship, next models.TrustState, evType events.Type) (*models.TrustRelationship, error) {
	from := rel.State
	if err := rel.Transition(next); err != nil {
		return nil, storeErr(err)
	}
	if err := w.core.Trusts.Update(ctx, rel); err != nil {
		return nil, storeErr(err)
	}

	metrics.TrustTransitions.WithLabelValues(string(next)).Inc()
	w.core.Logger.Info("[TRUST] state changed",
		zap.Uint("relationship_id", rel.ID),
		zap.Uint("wallet_id", w.ID()),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
	)
	w.core.publish(ctx, evType, w.ID(), rel.ID, rel)
	return rel, nil
}

// CheckTrust succeeds when this wallet holds a trusted relationship whose actor is
// source and target is target for requestType. It fails with ErrForbidden otherwise.
func (w *Wallet) CheckTrust(ctx context.Context, requestType models.TrustRequestType, source, target *Wallet) error {
	if !requestType.Valid() {
		return invalidInput("unknown trust request type %q", requestType)
	}
	trusted, err := w.core.Trusts.GetTrustedByOriginatorID(ctx, w.ID())
	if err != nil {
		return storeErr(err)
	}
	for _, r := range trusted {
		if r.ActorEntityID == source.ID() && r.TargetEntityID == target.ID() && r.RequestType == requestType {
			return nil
		}
	}
	return forbidden("no %s trust from wallet %d to wallet %d", requestType, source.ID(), target.ID())
}

// TrustFilter narrows TrustRelationships. Empty fields do not filter.
type TrustFilter struct {
	State models.TrustState
	Type  models.TrustRequestType
}

// TrustRelationships lists relationships this wallet originated or is targeted by.
func (w *Wallet) TrustRelationships(ctx context.Context, filter TrustFilter) ([]models.TrustRelationship, error) {
	if filter.State != "" && !filter.State.Valid() {
		return nil, invalidInput("unknown trust state %q", filter.State)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, invalidInput("unknown trust request type %q", filter.Type)
	}
	outgoing, err := w.core.Trusts.GetByOriginatorID(ctx, w.ID())
	if err != nil {
		return nil, storeErr(err)
	}
	incoming, err := w.core.Trusts.GetByTargetID(ctx, w.ID())
	if err != nil {
		return nil, storeErr(err)
	}

	seen := make(map[uint]bool, len(outgoing)+len(incoming))
	out := make([]models.TrustRelationship, 0, len(outgoing)+len(incoming))
	for _, r := range append(outgoing, incoming...) {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		if filter.State != "" && r.State != filter.State {
			continue
		}
		if filter.Type != "" && r.RequestType != filter.Type {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
