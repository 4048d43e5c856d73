// repository/memory_stores.go
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"wallet-trust-system/models"
)

// The memory stores mirror the GORM adapters, including version checks on
// Update, and back the service tests and local runs without a database.

type MemoryWalletStore struct {
	mu      sync.RWMutex
	nextID  uint
	wallets map[uint]models.Wallet
}

func NewMemoryWalletStore() *MemoryWalletStore {
	return &MemoryWalletStore{wallets: make(map[uint]models.Wallet)}
}

func (s *MemoryWalletStore) GetByID(_ context.Context, id uint) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[id]
	if !ok {
		return nil, fmt.Errorf("%w: wallet %d", ErrNotFound, id)
	}
	return &w, nil
}

func (s *MemoryWalletStore) GetByName(_ context.Context, name string) (*models.Wallet, error) {
	key := models.WalletSlug(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.wallets {
		if w.Slug == key {
			w := w
			return &w, nil
		}
	}
	return nil, fmt.Errorf("%w: wallet %s", ErrNotFound, name)
}

func (s *MemoryWalletStore) Create(_ context.Context, wallet *models.Wallet) error {
	wallet.Slug = models.WalletSlug(wallet.Name)
	if err := wallet.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wallets {
		if w.Slug == wallet.Slug {
			return fmt.Errorf("%w: wallet slug %q", ErrDuplicate, wallet.Slug)
		}
	}
	s.nextID++
	now := time.Now().UTC()
	wallet.ID = s.nextID
	wallet.CreatedAt = now
	wallet.UpdatedAt = now
	s.wallets[wallet.ID] = *wallet
	return nil
}

type MemoryTrustStore struct {
	mu     sync.RWMutex
	nextID uint
	rels   map[uint]models.TrustRelationship
}

func NewMemoryTrustStore() *MemoryTrustStore {
	return &MemoryTrustStore{rels: make(map[uint]models.TrustRelationship)}
}

func (s *MemoryTrustStore) GetByID(_ context.Context, id uint) (*models.TrustRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.rels[id]
	if !ok {
		return nil, fmt.Errorf("%w: trust relationship %d", ErrNotFound, id)
	}
	return &rel, nil
}

func (s *MemoryTrustStore) filter(keep func(r *models.TrustRelationship) bool) []models.TrustRelationship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TrustRelationship, 0)
	for _, r := range s.rels {
		r := r
		if keep(&r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryTrustStore) GetByOriginatorID(_ context.Context, walletID uint) ([]models.TrustRelationship, error) {
	return s.filter(func(r *models.TrustRelationship) bool {
		return r.OriginatorEntityID == walletID
	}), nil
}

func (s *MemoryTrustStore) GetByTargetID(_ context.Context, walletID uint) ([]models.TrustRelationship, error) {
	return s.filter(func(r *models.TrustRelationship) bool {
		return r.TargetEntityID == walletID
	}), nil
}

func (s *MemoryTrustStore) GetTrustedByOriginatorID(_ context.Context, walletID uint) ([]models.TrustRelationship, error) {
	return s.filter(func(r *models.TrustRelationship) bool {
		return r.OriginatorEntityID == walletID && r.State == models.TrustStateTrusted
	}), nil
}

func (s *MemoryTrustStore) GetChangedSince(_ context.Context, since time.Time) ([]models.TrustRelationship, error) {
	return s.filter(func(r *models.TrustRelationship) bool {
		return !r.UpdatedAt.Before(since)
	}), nil
}

func (s *MemoryTrustStore) Create(_ context.Context, rel *models.TrustRelationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now().UTC()
	rel.ID = s.nextID
	rel.Version = 1
	rel.CreatedAt = now
	rel.UpdatedAt = now
	s.rels[rel.ID] = *rel
	return nil
}

func (s *MemoryTrustStore) Update(_ context.Context, rel *models.TrustRelationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.rels[rel.ID]
	if !ok || stored.Version != rel.Version {
		return fmt.Errorf("%w: trust relationship %d", ErrStaleRecord, rel.ID)
	}
	rel.Version++
	rel.CreatedAt = stored.CreatedAt
	rel.UpdatedAt = time.Now().UTC()
	s.rels[rel.ID] = *rel
	return nil
}

type MemoryTransferStore struct {
	mu        sync.RWMutex
	nextID    uint
	transfers map[uint]models.Transfer
}

func NewMemoryTransferStore() *MemoryTransferStore {
	return &MemoryTransferStore{transfers: make(map[uint]models.Transfer)}
}

func (s *MemoryTransferStore) GetByID(_ context.Context, id uint) (*models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transfers[id]
	if !ok {
		return nil, fmt.Errorf("%w: transfer %d", ErrNotFound, id)
	}
	return &t, nil
}

func (s *MemoryTransferStore) GetPendingTransfers(ctx context.Context, walletID uint) ([]models.Transfer, error) {
	all, err := s.GetByFilter(ctx, TransferFilter{States: []models.TransferState{models.TransferStatePending}})
	if err != nil {
		return nil, err
	}
	out := make([]models.Transfer, 0, len(all))
	for _, t := range all {
		if t.DestinationEntityID == walletID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryTransferStore) GetByFilter(_ context.Context, filter TransferFilter) ([]models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Transfer, 0)
	for _, t := range s.transfers {
		t := t
		if filter.matches(&t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryTransferStore) Create(_ context.Context, transfer *models.Transfer) error {
	if err := transfer.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now().UTC()
	transfer.ID = s.nextID
	transfer.Version = 1
	if transfer.CreatedAt.IsZero() {
		transfer.CreatedAt = now
	}
	transfer.UpdatedAt = now
	s.transfers[transfer.ID] = *transfer
	return nil
}

func (s *MemoryTransferStore) Update(_ context.Context, transfer *models.Transfer) error {
	if err := transfer.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.transfers[transfer.ID]
	if !ok || stored.Version != transfer.Version {
		return fmt.Errorf("%w: transfer %d", ErrStaleRecord, transfer.ID)
	}
	transfer.Version++
	transfer.CreatedAt = stored.CreatedAt
	transfer.UpdatedAt = time.Now().UTC()
	s.transfers[transfer.ID] = *transfer
	return nil
}

type MemoryExecutionJournal struct {
	mu      sync.Mutex
	entries map[string]models.TransferExecution
}

func NewMemoryExecutionJournal() *MemoryExecutionJournal {
	return &MemoryExecutionJournal{entries: make(map[string]models.TransferExecution)}
}

func (j *MemoryExecutionJournal) Execute(_ context.Context, exec *models.TransferExecution) error {
	if err := exec.Validate(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.entries[exec.IdempotencyKey]; ok {
		return nil
	}
	if exec.ExecutedAt.IsZero() {
		exec.ExecutedAt = time.Now().UTC()
	}
	exec.ID = uint(len(j.entries) + 1)
	j.entries[exec.IdempotencyKey] = *exec
	return nil
}

// Entries returns every journaled execution ordered by id.
func (j *MemoryExecutionJournal) Entries() []models.TransferExecution {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]models.TransferExecution, 0, len(j.entries))
	for _, e := range j.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}
