// utils/jwt.go
package utils

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "wallet-trust-system"

// WalletClaims identifies the wallet a bearer token was issued to.
type WalletClaims struct {
	WalletName string `json:"wallet_name"`
	jwt.RegisteredClaims
}

// IssueWalletToken signs an HS256 token whose subject is the wallet id.
func IssueWalletToken(secret string, walletID uint, walletName string, ttl time.Duration) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, errors.New("jwt secret is empty")
	}
	now := time.Now().UTC()
	expires := now.Add(ttl)
	claims := WalletClaims{
		WalletName: walletName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(uint64(walletID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign wallet token: %w", err)
	}
	return signed, expires, nil
}

// ParseWalletToken verifies signature, issuer and expiry and returns the wallet id.
func ParseWalletToken(secret, raw string) (uint, *WalletClaims, error) {
	claims := &WalletClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid wallet token: %w", err)
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, nil, fmt.Errorf("invalid wallet token subject %q", claims.Subject)
	}
	return uint(id), claims, nil
}
