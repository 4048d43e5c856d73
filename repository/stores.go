// Package repository holds the persistence ports the wallet core depends on and
// their GORM and in-memory adapters.
package repository

import (
	"context"
	"errors"
	"time"

	"wallet-trust-system/models"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStaleRecord is returned by Update when the stored version no longer
	// matches the one the caller read, i.e. a concurrent writer got there first.
	ErrStaleRecord = errors.New("record was modified concurrently")

	// ErrDuplicate is returned by Create when a unique key is already taken.
	ErrDuplicate = errors.New("record already exists")
)

type WalletStore interface {
	GetByID(ctx context.Context, id uint) (*models.Wallet, error)
	GetByName(ctx context.Context, name string) (*models.Wallet, error)
	Create(ctx context.Context, wallet *models.Wallet) error
}

type TrustStore interface {
	GetByID(ctx context.Context, id uint) (*models.TrustRelationship, error)
	GetByOriginatorID(ctx context.Context, walletID uint) ([]models.TrustRelationship, error)
	GetByTargetID(ctx context.Context, walletID uint) ([]models.TrustRelationship, error)
	GetTrustedByOriginatorID(ctx context.Context, walletID uint) ([]models.TrustRelationship, error)
	GetChangedSince(ctx context.Context, since time.Time) ([]models.TrustRelationship, error)
	Create(ctx context.Context, rel *models.TrustRelationship) error
	// Update replaces the stored record by id, provided its version still matches.
	Update(ctx context.Context, rel *models.TrustRelationship) error
}

// TransferFilter narrows GetByFilter. Zero fields do not filter.
type TransferFilter struct {
	WalletID      uint // originator, source or destination
	States        []models.TransferState
	CreatedBefore time.Time
	UpdatedSince  time.Time
	Limit         int
}

type TransferStore interface {
	GetByID(ctx context.Context, id uint) (*models.Transfer, error)
	GetPendingTransfers(ctx context.Context, walletID uint) ([]models.Transfer, error)
	GetByFilter(ctx context.Context, filter TransferFilter) ([]models.Transfer, error)
	Create(ctx context.Context, transfer *models.Transfer) error
	// Update replaces the stored record by id, provided its version still matches.
	Update(ctx context.Context, transfer *models.Transfer) error
}

// ExecutionJournal records token movements exactly once per idempotency key.
type ExecutionJournal interface {
	Execute(ctx context.Context, exec *models.TransferExecution) error
}

func (f TransferFilter) matches(t *models.Transfer) bool {
	if f.WalletID != 0 && !t.Involves(f.WalletID) {
		return false
	}
	if len(f.States) > 0 {
		found := false
		for _, s := range f.States {
			if t.State == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.CreatedBefore.IsZero() && !t.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	if !f.UpdatedSince.IsZero() && t.UpdatedAt.Before(f.UpdatedSince) {
		return false
	}
	return true
}
