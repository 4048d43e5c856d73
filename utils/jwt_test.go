package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletTokenRoundTrip(t *testing.T) {
	raw, expires, err := IssueWalletToken("s3cret", 42, "bob", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	id, claims, err := ParseWalletToken("s3cret", raw)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
	assert.Equal(t, "bob", claims.WalletName)
}

func TestWalletTokenRejected(t *testing.T) {
	raw, _, err := IssueWalletToken("s3cret", 42, "bob", time.Hour)
	require.NoError(t, err)

	_, _, err = ParseWalletToken("other", raw)
	assert.Error(t, err)

	expired, _, err := IssueWalletToken("s3cret", 42, "bob", -time.Minute)
	require.NoError(t, err)
	_, _, err = ParseWalletToken("s3cret", expired)
	assert.Error(t, err)

	_, _, err = ParseWalletToken("s3cret", "not-a-token")
	assert.Error(t, err)

	_, _, err = IssueWalletToken("", 42, "bob", time.Hour)
	assert.Error(t, err)
}
