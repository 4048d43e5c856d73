// models/wallet.go
package models

import (
	"strings"
	"time"

	"github.com/gosimple/slug"
	"golang.org/x/text/unicode/norm"
)

// Wallet is an account-like entity that can hold tokens and grant trust.
// Table name: wallets
type Wallet struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(128);not null" json:"name"`
	Slug         string    `gorm:"type:varchar(160);not null;uniqueIndex" json:"slug"` // lookup key for name resolution
	PasswordHash string    `gorm:"type:varchar(128);not null" json:"-"`
	Salt         string    `gorm:"type:varchar(64);not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WalletSlug normalizes a display name into the key wallets are resolved by.
// "Bob", " bob " and "BOB" all resolve to the same wallet.
func WalletSlug(name string) string {
	return slug.Make(norm.NFKC.String(strings.TrimSpace(name)))
}

func (w *Wallet) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return invalidRecord("wallet", "name is required")
	}
	if w.Slug == "" {
		return invalidRecord("wallet", "slug is required")
	}
	if w.PasswordHash == "" || w.Salt == "" {
		return invalidRecord("wallet", "credentials are required")
	}
	return nil
}
