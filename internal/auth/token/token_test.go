package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "lineage/pkg/domain"
	dErrors "lineage/pkg/domain-errors"
)

var tokenService = NewService("test-signing-key", "test-issuer", time.Hour)

func Test_IssueAndVerify(t *testing.T) {
	wallet := id.NewWalletID()
	now := time.Now().UTC()

	signed, expiresAt, err := tokenService.Issue(wallet, now)
	require.NoError(t, err)
	require.NotEmpty(t, signed)
	assert.WithinDuration(t, now.Add(time.Hour), expiresAt, time.Second)

	verified, err := tokenService.VerifyToken(signed)
	require.NoError(t, err)
	assert.Equal(t, wallet, verified)
}

func Test_VerifyToken_InvalidToken(t *testing.T) {
	_, err := tokenService.VerifyToken("invalid-token-string")
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_VerifyToken_ExpiredToken(t *testing.T) {
	expired := NewService("test-signing-key", "test-issuer", -time.Hour)

	signed, _, err := expired.Issue(id.NewWalletID(), time.Now().UTC())
	require.NoError(t, err)

	_, err = tokenService.VerifyToken(signed)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}

func Test_VerifyToken_WrongKey(t *testing.T) {
	other := NewService("other-signing-key", "test-issuer", time.Hour)

	signed, _, err := other.Issue(id.NewWalletID(), time.Now().UTC())
	require.NoError(t, err)

	_, err = tokenService.VerifyToken(signed)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
