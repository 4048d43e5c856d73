package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"wallet-trust-system/events"
	"wallet-trust-system/models"
	"wallet-trust-system/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	core      *Core
	trusts    *repository.MemoryTrustStore
	transfers *repository.MemoryTransferStore
	journal   *repository.MemoryExecutionJournal
	events    *recordingPublisher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		trusts:    repository.NewMemoryTrustStore(),
		transfers: repository.NewMemoryTransferStore(),
		journal:   repository.NewMemoryExecutionJournal(),
		events:    &recordingPublisher{},
	}
	opts = append([]Option{WithEvents(f.events)}, opts...)
	f.core = NewCore(repository.NewMemoryWalletStore(), f.trusts, f.transfers, f.journal, opts...)
	return f
}

func (f *fixture) wallet(t *testing.T, name string) *Wallet {
	t.Helper()
	w, err := f.core.CreateWallet(context.Background(), name, "pw-"+name)
	require.NoError(t, err)
	return w
}

// trusted establishes a send trust from originator towards target.
func (f *fixture) trusted(t *testing.T, originator, target *Wallet) *models.TrustRelationship {
	t.Helper()
	ctx := context.Background()
	rel, err := originator.RequestTrust(ctx, "send", target.Name())
	require.NoError(t, err)
	rel, err = target.AcceptTrustRequest(ctx, rel.ID)
	require.NoError(t, err)
	return rel
}

func TestCreateWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.core.CreateWallet(ctx, "  Bob Smith ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Bob Smith", w.Name())
	assert.Equal(t, "bob-smith", w.Record().Slug)
	assert.NotEqual(t, "secret", w.Record().PasswordHash)

	_, err = f.core.CreateWallet(ctx, "bob smith", "other")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.core.CreateWallet(ctx, "", "secret")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.core.CreateWallet(ctx, "carol", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	got, err := f.core.WalletByName(ctx, "BOB SMITH")
	require.NoError(t, err)
	assert.Equal(t, w.ID(), got.ID())

	_, err = f.core.Wallet(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

// racingWalletStore misses on lookup as if a concurrent create had not committed yet.
type racingWalletStore struct {
	*repository.MemoryWalletStore
}

func (racingWalletStore) GetByName(context.Context, string) (*models.Wallet, error) {
	return nil, repository.ErrNotFound
}

func TestCreateWalletRaceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.core.Wallets = racingWalletStore{repository.NewMemoryWalletStore()}

	_, err := f.core.CreateWallet(ctx, "bob", "secret")
	require.NoError(t, err)

	_, err = f.core.CreateWallet(ctx, "Bob", "other")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAuthorize(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "alice")

	id, err := w.Authorize("pw-alice")
	require.NoError(t, err)
	assert.Equal(t, w.ID(), id)

	_, err = w.Authorize("pw-alicE")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = w.Authorize("")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestHashPasswordDependsOnSalt(t *testing.T) {
	assert.Equal(t, HashPassword("pw", "salt"), HashPassword("pw", "salt"))
	assert.NotEqual(t, HashPassword("pw", "salt"), HashPassword("pw", "pepper"))
	assert.Len(t, HashPassword("pw", "salt"), 128)

	h1, s1, err := NewCredentials("pw")
	require.NoError(t, err)
	h2, s2, err := NewCredentials("pw")
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)
	assert.NotEqual(t, h1, h2)
	assert.True(t, passwordMatches("pw", s1, h1))
	assert.False(t, passwordMatches("pw", s1, h2))
}

func TestRequestAndAcceptTrust(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w1 := f.wallet(t, "alice")
	w2 := f.wallet(t, "bob")

	rel, err := w1.RequestTrust(ctx, "send", "bob")
	require.NoError(t, err)
	assert.Equal(t, models.TrustStateRequested, rel.State)
	assert.Equal(t, w1.ID(), rel.OriginatorEntityID)
	assert.Equal(t, w1.ID(), rel.ActorEntityID)
	assert.Equal(t, w2.ID(), rel.TargetEntityID)

	rel, err = w2.AcceptTrustRequest(ctx, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TrustStateTrusted, rel.State)

	assert.NoError(t, w1.CheckTrust(ctx, models.TrustRequestSend, w1, w2))
	assert.Equal(t, []events.Type{events.TrustRequested, events.TrustAccepted}, f.events.types())
}

func TestRequestTrustValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w1 := f.wallet(t, "alice")
	f.wallet(t, "bob")

	_, err := w1.RequestTrust(ctx, "borrow", "bob")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = w1.RequestTrust(ctx, "send", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = w1.RequestTrust(ctx, "send", "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = w1.RequestTrust(ctx, "send", "alice")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDuplicateTrustRequestIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w1 := f.wallet(t, "alice")
	w2 := f.wallet(t, "bob")

	rel, err := w1.RequestTrust(ctx, "send", "bob")
	require.NoError(t, err)

	_, err = w1.RequestTrust(ctx, "send", "bob")
	assert.ErrorIs(t, err, ErrForbidden)

	// another type towards the same target is a separate relationship
	_, err = w1.RequestTrust(ctx, "deduct", "bob")
	assert.NoError(t, err)

	_, err = w2.AcceptTrustRequest(ctx, rel.ID)
	require.NoError(t, err)
	_, err = w1.RequestTrust(ctx, "send", "bob")
	assert.ErrorIs(t, err, ErrForbidden)

	outgoing, err := f.trusts.GetByOriginatorID(ctx, w1.ID())
	require.NoError(t, err)
	assert.Len(t, outgoing, 2)
}

func TestTrustRequestMayBeRepeatedAfterDecline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w1 := f.wallet(t, "alice")
	w2 := f.wallet(t, "bob")

	rel, err := w1.RequestTrust(ctx, "send", "bob")
	require.NoError(t, err)
	rel, err = w2.DeclineTrustRequest(ctx, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TrustStateCanceledByTarget, rel.State)

	again, err := w1.RequestTrust(ctx, "send", "bob")
	require.NoError(t, err)
	assert.NotEqual(t, rel.ID, again.ID)
}

func TestOnlyTargetResolvesTrust(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w1 := f.wallet(t, "alice")
	w2 := f.wallet(t, "bob")
	w3 := f.wallet(t, "carol")

	rel, err := w1.RequestTrust(ctx, "send", "bob")
	require.NoError(t, err)

	_, err = w3.AcceptTrustRequest(ctx, rel.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = w3.DeclineTrustRequest(ctx, rel.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = w1.AcceptTrustRequest(ctx, rel.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	stored, err := f.trusts.GetByID(ctx, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TrustStateRequested, stored.State)

	_, err = w2.AcceptTrustRequest(ctx, rel.ID)
	require.NoError(t, err)

	_, err = w2.AcceptTrustRequest(ctx, rel.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = w2.DeclineTrustRequest(ctx, rel.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCancelTrustRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w1 := f.wallet(t, "alice")
	w2 := f.wallet(t, "bob")

	rel, err := w1.RequestTrust(ctx, "manage", "bob")
	require.NoError(t, err)

	_, err = w2.CancelTrustRequest(ctx, rel.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	rel, err = w1.CancelTrustRequest(ctx, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TrustStateCancelledByOriginator, rel.State)

	_, err = w2.AcceptTrustRequest(ctx, rel.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = w1.CancelTrustRequest(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckTrustRequiresExactMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w1 := f.wallet(t, "alice")
	w2 := f.wallet(t, "bob")
	w3 := f.wallet(t, "carol")

	err := w1.CheckTrust(ctx, models.TrustRequestSend, w1, w2)
	assert.ErrorIs(t, err, ErrForbidden)

	f.trusted(t, w1, w2)

	assert.NoError(t, w1.CheckTrust(ctx, models.TrustRequestSend, w1, w2))
	assert.ErrorIs(t, w1.CheckTrust(ctx, models.TrustRequestDeduct, w1, w2), ErrForbidden)
	assert.ErrorIs(t, w1.CheckTrust(ctx, models.TrustRequestSend, w1, w3), ErrForbidden)
	assert.ErrorIs(t, w1.CheckTrust(ctx, models.TrustRequestSend, w2, w1), ErrForbidden)
	// the relationship belongs to its originator
	assert.ErrorIs(t, w2.CheckTrust(ctx, models.TrustRequestSend, w1, w2), ErrForbidden)
	assert.ErrorIs(t, w1.CheckTrust(ctx, models.TrustRequestType("lend"), w1, w2), ErrInvalidInput)
}

func TestTrustRelationshipsFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w1 := f.wallet(t, "alice")
	w2 := f.wallet(t, "bob")
	f.wallet(t, "carol")

	f.trusted(t, w1, w2)
	_, err := w1.RequestTrust(ctx, "deduct", "carol")
	require.NoError(t, err)
	_, err = w2.RequestTrust(ctx, "manage", "alice")
	require.NoError(t, err)

	all, err := w1.TrustRelationships(ctx, TrustFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	requested, err := w1.TrustRelationships(ctx, TrustFilter{State: models.TrustStateRequested})
	require.NoError(t, err)
	assert.Len(t, requested, 2)

	managed, err := w1.TrustRelationships(ctx, TrustFilter{Type: models.TrustRequestManage})
	require.NoError(t, err)
	require.Len(t, managed, 1)
	assert.Equal(t, w2.ID(), managed[0].OriginatorEntityID)

	_, err = w1.TrustRelationships(ctx, TrustFilter{State: "lost"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

type vetoPolicy struct{ seen []models.TrustRequestType }

func (v *vetoPolicy) ReviewTrustRequest(_ context.Context, _ *Wallet, req *models.TrustRelationship) error {
	v.seen = append(v.seen, req.RequestType)
	if req.RequestType == models.TrustRequestDeduct {
		return errors.New("deduct trust is not granted by this wallet")
	}
	return nil
}

func TestTrustRequestPolicyVeto(t *testing.T) {
	veto := &vetoPolicy{}
	f := newFixture(t, WithTrustRequestPolicy(veto))
	ctx := context.Background()
	w1 := f.wallet(t, "alice")
	f.wallet(t, "bob")

	_, err := w1.RequestTrust(ctx, "deduct", "bob")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = w1.RequestTrust(ctx, "send", "bob")
	assert.NoError(t, err)

	assert.Equal(t, []models.TrustRequestType{models.TrustRequestDeduct, models.TrustRequestSend}, veto.seen)
	outgoing, err := f.trusts.GetByOriginatorID(ctx, w1.ID())
	require.NoError(t, err)
	assert.Len(t, outgoing, 1)
}

func TestPublishFailureDoesNotUndoChange(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")
	ctx := context.Background()
	w1 := f.wallet(t, "alice")
	f.wallet(t, "bob")

	rel, err := w1.RequestTrust(ctx, "send", "bob")
	require.NoError(t, err)

	stored, err := f.trusts.GetByID(ctx, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TrustStateRequested, stored.State)
}

func TestConcurrentTrustResolutionConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w1 := f.wallet(t, "alice")
	w2 := f.wallet(t, "bob")

	rel, err := w1.RequestTrust(ctx, "send", "bob")
	require.NoError(t, err)

	// a stale copy loses against the write that landed first
	stale, err := f.trusts.GetByID(ctx, rel.ID)
	require.NoError(t, err)
	_, err = w2.AcceptTrustRequest(ctx, rel.ID)
	require.NoError(t, err)

	_, err = w2.transitionTrust(ctx, stale, models.TrustStateCanceledByTarget, events.TrustDeclined)
	assert.ErrorIs(t, err, ErrConflict)

	stored, err := f.trusts.GetByID(ctx, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TrustStateTrusted, stored.State)
}
