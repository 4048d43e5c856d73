// services/core.go
package services

import (
	"context"
	"strings"

	"wallet-trust-system/events"
	"wallet-trust-system/models"
	"wallet-trust-system/repository"

	"go.uber.org/zap"
)

// Core bundles the stores, collaborators and policies every Wallet aggregate
// works through. It holds no per-request state and is safe for concurrent use.
type Core struct {
	Wallets    repository.WalletStore
	Trusts     repository.TrustStore
	Transfers  repository.TransferStore
	Executor   repository.ExecutionJournal
	TrustRules TrustRequestPolicy
	Control    ControlPolicy
	Privileges TransferPrivilegePolicy
	Events     events.Publisher
	Logger     *zap.Logger
}

type Option func(*Core)

func WithTrustRequestPolicy(p TrustRequestPolicy) Option {
	return func(c *Core) { c.TrustRules = p }
}

func WithControlPolicy(p ControlPolicy) Option {
	return func(c *Core) { c.Control = p }
}

func WithTransferPrivileges(p TransferPrivilegePolicy) Option {
	return func(c *Core) { c.Privileges = p }
}

func WithEvents(p events.Publisher) Option {
	return func(c *Core) { c.Events = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Core) { c.Logger = l }
}

func NewCore(
	wallets repository.WalletStore,
	trusts repository.TrustStore,
	transfers repository.TransferStore,
	executor repository.ExecutionJournal,
	opts ...Option,
) *Core {
	c := &Core{
		Wallets:    wallets,
		Trusts:     trusts,
		Transfers:  transfers,
		Executor:   executor,
		TrustRules: AcceptAllTrustRequests{},
		Control:    IdentityControl{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Privileges == nil {
		c.Privileges = OwnershipPrivileges{Control: c.Control}
	}
	if c.Events == nil {
		c.Events = events.LogPublisher{Logger: c.Logger}
	}
	return c
}

// Wallet materializes the aggregate for an existing wallet.
func (c *Core) Wallet(ctx context.Context, id uint) (*Wallet, error) {
	if id == 0 {
		return nil, invalidInput("wallet id is required")
	}
	rec, err := c.Wallets.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return &Wallet{core: c, record: *rec}, nil
}

// WalletByName resolves a wallet by display name.
func (c *Core) WalletByName(ctx context.Context, name string) (*Wallet, error) {
	if strings.TrimSpace(name) == "" {
		return nil, invalidInput("wallet name is required")
	}
	rec, err := c.Wallets.GetByName(ctx, name)
	if err != nil {
		return nil, storeErr(err)
	}
	return &Wallet{core: c, record: *rec}, nil
}

// CreateWallet registers a new wallet with freshly salted credentials.
func (c *Core) CreateWallet(ctx context.Context, name, password string) (*Wallet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidInput("wallet name is required")
	}
	if models.WalletSlug(name) == "" {
		return nil, invalidInput("wallet name %q has no usable characters", name)
	}
	if _, err := c.Wallets.GetByName(ctx, name); err == nil {
		return nil, forbidden("wallet name %q is already taken", name)
	}
	hash, salt, err := NewCredentials(password)
	if err != nil {
		return nil, err
	}
	rec := &models.Wallet{Name: name, PasswordHash: hash, Salt: salt}
	if err := c.Wallets.Create(ctx, rec); err != nil {
		return nil, storeErr(err)
	}
	c.Logger.Info("[WALLET] created", zap.Uint("wallet_id", rec.ID), zap.String("slug", rec.Slug))
	return &Wallet{core: c, record: *rec}, nil
}

func (c *Core) publish(ctx context.Context, typ events.Type, walletID, subjectID uint, payload interface{}) {
	ev, err := events.New(typ, walletID, subjectID, payload)
	if err == nil {
		err = c.Events.Publish(ctx, ev)
	}
	if err != nil {
		// the state change is already durable; a lost event must not undo it
		c.Logger.Warn("[EVENT] publish failed",
			zap.String("type", string(typ)),
			zap.Uint("wallet_id", walletID),
			zap.Uint("subject_id", subjectID),
			zap.Error(err),
		)
	}
}
