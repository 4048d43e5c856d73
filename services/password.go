package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
)

const saltBytes = 32

// HashPassword computes the hex HMAC-SHA512 of password keyed by salt.
func HashPassword(password, salt string) string {
	mac := hmac.New(sha512.New, []byte(salt))
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewCredentials draws a fresh salt and returns it with the matching hash.
func NewCredentials(password string) (hash, salt string, err error) {
	if password == "" {
		return "", "", invalidInput("password is required")
	}
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}
	salt = hex.EncodeToString(buf)
	return HashPassword(password, salt), salt, nil
}

func passwordMatches(password, salt, storedHash string) bool {
	computed := HashPassword(password, salt)
	return hmac.Equal([]byte(computed), []byte(storedHash))
}
