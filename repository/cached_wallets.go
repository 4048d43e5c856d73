package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"wallet-trust-system/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedWalletStore remembers slug -> wallet id in Redis so name resolution
// skips the slug scan. Credentials are never cached; the wallet itself is always
// read from the wrapped store. Redis failures degrade to the wrapped store.
type CachedWalletStore struct {
	next   WalletStore
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedWalletStore(next WalletStore, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedWalletStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedWalletStore{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func walletSlugKey(slug string) string {
	return "wallet:slug:" + slug
}

func (s *CachedWalletStore) GetByID(ctx context.Context, id uint) (*models.Wallet, error) {
	return s.next.GetByID(ctx, id)
}

func (s *CachedWalletStore) GetByName(ctx context.Context, name string) (*models.Wallet, error) {
	key := walletSlugKey(models.WalletSlug(name))

	raw, err := s.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if id, convErr := strconv.ParseUint(raw, 10, 64); convErr == nil {
			wallet, getErr := s.next.GetByID(ctx, uint(id))
			if getErr == nil {
				return wallet, nil
			}
			if !errors.Is(getErr, ErrNotFound) {
				return nil, getErr
			}
		}
		// stale or malformed entry, fall through to the store
	case errors.Is(err, redis.Nil):
	default:
		s.logger.Warn("[WALLET_CACHE] redis lookup failed", zap.String("key", key), zap.Error(err))
	}

	wallet, err := s.next.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, wallet)
	return wallet, nil
}

func (s *CachedWalletStore) Create(ctx context.Context, wallet *models.Wallet) error {
	if err := s.next.Create(ctx, wallet); err != nil {
		return err
	}
	s.remember(ctx, wallet)
	return nil
}

func (s *CachedWalletStore) remember(ctx context.Context, wallet *models.Wallet) {
	key := walletSlugKey(wallet.Slug)
	if err := s.rdb.Set(ctx, key, strconv.FormatUint(uint64(wallet.ID), 10), s.ttl).Err(); err != nil {
		s.logger.Warn("[WALLET_CACHE] redis write failed", zap.String("key", key), zap.Error(err))
	}
}
