// Package wallet holds step definitions for wallet registration and
// token issuance.
package wallet

import (
	"github.com/cucumber/godog"
)

// TestContext is the slice of the suite context these steps need.
type TestContext interface {
	POST(path string, body map[string]any) error
	CreateWallet(alias string) error
	ActAs(alias string) error
	ClearAuth()
	SetToken(token string)
	WalletID(alias string) (string, error)
	WalletSecret(alias string) (string, error)
}

type walletSteps struct {
	tc TestContext
}

// RegisterSteps registers the wallet step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	s := &walletSteps{tc: tc}

	ctx.Step(`^a wallet "([^"]*)"$`, s.aWallet)
	ctx.Step(`^I act as "([^"]*)"$`, s.iActAs)
	ctx.Step(`^I have no token$`, s.iHaveNoToken)
	ctx.Step(`^I use the token "([^"]*)"$`, s.iUseTheToken)
	ctx.Step(`^I register a new wallet$`, s.iRegisterANewWallet)
	ctx.Step(`^I request a token for "([^"]*)" with its secret$`, s.iRequestATokenWithSecret)
	ctx.Step(`^I request a token for "([^"]*)" with secret "([^"]*)"$`, s.iRequestATokenWithWrongSecret)
	ctx.Step(`^I request a token for wallet id "([^"]*)" with secret "([^"]*)"$`, s.iRequestATokenForRawWallet)
}

func (s *walletSteps) aWallet(alias string) error {
	return s.tc.CreateWallet(alias)
}

func (s *walletSteps) iActAs(alias string) error {
	return s.tc.ActAs(alias)
}

func (s *walletSteps) iHaveNoToken() error {
	s.tc.ClearAuth()
	return nil
}

func (s *walletSteps) iUseTheToken(token string) error {
	s.tc.SetToken(token)
	return nil
}

func (s *walletSteps) iRegisterANewWallet() error {
	s.tc.ClearAuth()
	return s.tc.POST("/v1/wallets", nil)
}

func (s *walletSteps) iRequestATokenWithSecret(alias string) error {
	id, err := s.tc.WalletID(alias)
	if err != nil {
		return err
	}
	secret, err := s.tc.WalletSecret(alias)
	if err != nil {
		return err
	}
	return s.tc.POST("/v1/tokens", map[string]any{
		"wallet_id":     id,
		"wallet_secret": secret,
	})
}

func (s *walletSteps) iRequestATokenWithWrongSecret(alias, secret string) error {
	id, err := s.tc.WalletID(alias)
	if err != nil {
		return err
	}
	return s.tc.POST("/v1/tokens", map[string]any{
		"wallet_id":     id,
		"wallet_secret": secret,
	})
}

func (s *walletSteps) iRequestATokenForRawWallet(id, secret string) error {
	return s.tc.POST("/v1/tokens", map[string]any{
		"wallet_id":     id,
		"wallet_secret": secret,
	})
}
