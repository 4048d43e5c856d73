// repository/gorm_stores.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-trust-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AutoMigrate creates or updates every table the stores use.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Wallet{},
		&models.TrustRelationship{},
		&models.Transfer{},
		&models.TransferExecution{},
	)
}

func translate(err error, entity string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %v", ErrNotFound, entity, id)
	}
	return fmt.Errorf("failed to load %s %v: %w", entity, id, err)
}

// --- Wallets ---

type GormWalletStore struct {
	DB *gorm.DB
}

func NewGormWalletStore(db *gorm.DB) *GormWalletStore {
	return &GormWalletStore{DB: db}
}

func (s *GormWalletStore) GetByID(ctx context.Context, id uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.DB.WithContext(ctx).First(&wallet, "id = ?", id).Error; err != nil {
		return nil, translate(err, "wallet", id)
	}
	return &wallet, nil
}

func (s *GormWalletStore) GetByName(ctx context.Context, name string) (*models.Wallet, error) {
	key := models.WalletSlug(name)
	var wallet models.Wallet
	if err := s.DB.WithContext(ctx).Where("slug = ?", key).First(&wallet).Error; err != nil {
		return nil, translate(err, "wallet", name)
	}
	return &wallet, nil
}

func (s *GormWalletStore) Create(ctx context.Context, wallet *models.Wallet) error {
	wallet.Slug = models.WalletSlug(wallet.Name)
	if err := wallet.Validate(); err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Create(wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: wallet slug %q", ErrDuplicate, wallet.Slug)
		}
		return fmt.Errorf("failed to create wallet %q: %w", wallet.Name, err)
	}
	return nil
}

// --- Trust relationships ---

type GormTrustStore struct {
	DB *gorm.DB
}

func NewGormTrustStore(db *gorm.DB) *GormTrustStore {
	return &GormTrustStore{DB: db}
}

func (s *GormTrustStore) GetByID(ctx context.Context, id uint) (*models.TrustRelationship, error) {
	var rel models.TrustRelationship
	if err := s.DB.WithContext(ctx).First(&rel, "id = ?", id).Error; err != nil {
		return nil, translate(err, "trust relationship", id)
	}
	return &rel, nil
}

func (s *GormTrustStore) find(ctx context.Context, query string, args ...interface{}) ([]models.TrustRelationship, error) {
	var rels []models.TrustRelationship
	if err := s.DB.WithContext(ctx).Where(query, args...).Order("id").Find(&rels).Error; err != nil {
		return nil, fmt.Errorf("failed to query trust relationships: %w", err)
	}
	return rels, nil
}

func (s *GormTrustStore) GetByOriginatorID(ctx context.Context, walletID uint) ([]models.TrustRelationship, error) {
	return s.find(ctx, "originator_entity_id = ?", walletID)
}

func (s *GormTrustStore) GetByTargetID(ctx context.Context, walletID uint) ([]models.TrustRelationship, error) {
	return s.find(ctx, "target_entity_id = ?", walletID)
}

func (s *GormTrustStore) GetTrustedByOriginatorID(ctx context.Context, walletID uint) ([]models.TrustRelationship, error) {
	return s.find(ctx, "originator_entity_id = ? AND state = ?", walletID, models.TrustStateTrusted)
}

func (s *GormTrustStore) GetChangedSince(ctx context.Context, since time.Time) ([]models.TrustRelationship, error) {
	return s.find(ctx, "updated_at >= ?", since)
}

func (s *GormTrustStore) Create(ctx context.Context, rel *models.TrustRelationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	rel.Version = 1
	if err := s.DB.WithContext(ctx).Create(rel).Error; err != nil {
		return fmt.Errorf("failed to create trust relationship: %w", err)
	}
	return nil
}

func (s *GormTrustStore) Update(ctx context.Context, rel *models.TrustRelationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	res := s.DB.WithContext(ctx).
		Model(&models.TrustRelationship{}).
		Where("id = ? AND version = ?", rel.ID, rel.Version).
		Updates(map[string]interface{}{
			"request_type":         rel.RequestType,
			"actor_entity_id":      rel.ActorEntityID,
			"originator_entity_id": rel.OriginatorEntityID,
			"target_entity_id":     rel.TargetEntityID,
			"state":                rel.State,
			"version":              rel.Version + 1,
			"updated_at":           now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update trust relationship %d: %w", rel.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: trust relationship %d", ErrStaleRecord, rel.ID)
	}
	rel.Version++
	rel.UpdatedAt = now
	return nil
}

// --- Transfers ---

type GormTransferStore struct {
	DB *gorm.DB
}

func NewGormTransferStore(db *gorm.DB) *GormTransferStore {
	return &GormTransferStore{DB: db}
}

func (s *GormTransferStore) GetByID(ctx context.Context, id uint) (*models.Transfer, error) {
	var transfer models.Transfer
	if err := s.DB.WithContext(ctx).First(&transfer, "id = ?", id).Error; err != nil {
		return nil, translate(err, "transfer", id)
	}
	return &transfer, nil
}

func (s *GormTransferStore) GetPendingTransfers(ctx context.Context, walletID uint) ([]models.Transfer, error) {
	var transfers []models.Transfer
	err := s.DB.WithContext(ctx).
		Where("destination_entity_id = ? AND state = ?", walletID, models.TransferStatePending).
		Order("id").
		Find(&transfers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query pending transfers for wallet %d: %w", walletID, err)
	}
	return transfers, nil
}

func (s *GormTransferStore) GetByFilter(ctx context.Context, filter TransferFilter) ([]models.Transfer, error) {
	db := s.DB.WithContext(ctx).Model(&models.Transfer{})
	if filter.WalletID != 0 {
		db = db.Where(
			"originator_entity_id = ? OR source_entity_id = ? OR destination_entity_id = ?",
			filter.WalletID, filter.WalletID, filter.WalletID,
		)
	}
	if len(filter.States) > 0 {
		db = db.Where("state IN ?", filter.States)
	}
	if !filter.CreatedBefore.IsZero() {
		db = db.Where("created_at < ?", filter.CreatedBefore)
	}
	if !filter.UpdatedSince.IsZero() {
		db = db.Where("updated_at >= ?", filter.UpdatedSince)
	}
	if filter.Limit > 0 {
		db = db.Limit(filter.Limit)
	}

	var transfers []models.Transfer
	if err := db.Order("id").Find(&transfers).Error; err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	return transfers, nil
}

func (s *GormTransferStore) Create(ctx context.Context, transfer *models.Transfer) error {
	if err := transfer.Validate(); err != nil {
		return err
	}
	transfer.Version = 1
	if err := s.DB.WithContext(ctx).Create(transfer).Error; err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

func (s *GormTransferStore) Update(ctx context.Context, transfer *models.Transfer) error {
	if err := transfer.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	res := s.DB.WithContext(ctx).
		Model(&models.Transfer{}).
		Where("id = ? AND version = ?", transfer.ID, transfer.Version).
		Updates(map[string]interface{}{
			"originator_entity_id":  transfer.OriginatorEntityID,
			"source_entity_id":      transfer.SourceEntityID,
			"destination_entity_id": transfer.DestinationEntityID,
			"amount":                transfer.Amount,
			"state":                 transfer.State,
			"closed_at":             transfer.ClosedAt,
			"version":               transfer.Version + 1,
			"updated_at":            now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update transfer %d: %w", transfer.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: transfer %d", ErrStaleRecord, transfer.ID)
	}
	transfer.Version++
	transfer.UpdatedAt = now
	return nil
}

// --- Execution journal ---

type GormExecutionJournal struct {
	DB *gorm.DB
}

func NewGormExecutionJournal(db *gorm.DB) *GormExecutionJournal {
	return &GormExecutionJournal{DB: db}
}

// Execute records the movement; a second call with the same key leaves the first entry untouched.
func (j *GormExecutionJournal) Execute(ctx context.Context, exec *models.TransferExecution) error {
	if err := exec.Validate(); err != nil {
		return err
	}
	if exec.ExecutedAt.IsZero() {
		exec.ExecutedAt = time.Now().UTC()
	}
	err := j.DB.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		},
	).Create(exec).Error
	if err != nil {
		return fmt.Errorf("failed to journal transfer execution %s: %w", exec.IdempotencyKey, err)
	}
	return nil
}
