// Package models holds the wallet credential types. A wallet is an
// identity, not an account: creating one hands the caller a secret and
// nothing else until the wallet backs an agent or a balance.
package models

import (
	"time"

	id "lineage/pkg/domain"
)

// Credential is a wallet's stored identity. The secret is kept only as
// a bcrypt hash; the plaintext exists once, in the creation response.
type Credential struct {
	Wallet     id.WalletID `json:"wallet"`
	SecretHash string      `json:"-"`
	CreatedAt  time.Time   `json:"created_at"`
}

// WalletCredentials is the one-time creation response. The secret is
// not recoverable afterwards.
type WalletCredentials struct {
	Wallet id.WalletID `json:"wallet_id"`
	Secret string      `json:"wallet_secret"`
}

// Token is an issued access token.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
