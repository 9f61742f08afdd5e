// Package e2e drives a running lineage server over HTTP with godog.
// Scenarios get a fresh TestContext, so wallets and agents never leak
// between them; the registry is shared server state and the steps treat
// initialization as idempotent.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type walletCredentials struct {
	id     string
	secret string
	token  string
}

// TestContext holds per-scenario state: named wallets, the active bearer
// token, and the last response.
type TestContext struct {
	baseURL string
	client  *http.Client

	wallets map[string]walletCredentials
	token   string

	lastStatus int
	lastBody   map[string]any
}

// NewTestContext creates a context targeting baseURL.
func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		wallets: make(map[string]walletCredentials),
	}
}

// POST sends a JSON request with the active bearer token, if any.
func (tc *TestContext) POST(path string, body map[string]any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(http.MethodPost, tc.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return tc.send(req)
}

// GET sends a request with the active bearer token, if any.
func (tc *TestContext) GET(path string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	return tc.send(req)
}

func (tc *TestContext) send(req *http.Request) error {
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	tc.lastStatus = resp.StatusCode
	tc.lastBody = nil
	if len(raw) > 0 {
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err == nil {
			tc.lastBody = body
		}
	}
	return nil
}

// CreateWallet registers a wallet under alias and issues its token.
func (tc *TestContext) CreateWallet(alias string) error {
	if err := tc.POST("/v1/wallets", nil); err != nil {
		return err
	}
	if tc.lastStatus != http.StatusCreated {
		return fmt.Errorf("create wallet: unexpected status %d", tc.lastStatus)
	}
	id, _ := tc.Field("wallet_id")
	secret, _ := tc.Field("wallet_secret")
	cred := walletCredentials{id: fmt.Sprint(id), secret: fmt.Sprint(secret)}

	if err := tc.POST("/v1/tokens", map[string]any{
		"wallet_id":     cred.id,
		"wallet_secret": cred.secret,
	}); err != nil {
		return err
	}
	if tc.lastStatus != http.StatusOK {
		return fmt.Errorf("issue token for %q: unexpected status %d", alias, tc.lastStatus)
	}
	token, err := tc.Field("access_token")
	if err != nil {
		return err
	}
	cred.token = fmt.Sprint(token)

	tc.wallets[alias] = cred
	return nil
}

// ActAs switches the active bearer token to the named wallet.
func (tc *TestContext) ActAs(alias string) error {
	cred, ok := tc.wallets[alias]
	if !ok {
		return fmt.Errorf("unknown wallet alias %q", alias)
	}
	tc.token = cred.token
	return nil
}

// ClearAuth drops the active bearer token.
func (tc *TestContext) ClearAuth() {
	tc.token = ""
}

// SetToken installs a raw bearer token, valid or not.
func (tc *TestContext) SetToken(token string) {
	tc.token = token
}

// WalletID returns the server-assigned ID of the named wallet.
func (tc *TestContext) WalletID(alias string) (string, error) {
	cred, ok := tc.wallets[alias]
	if !ok {
		return "", fmt.Errorf("unknown wallet alias %q", alias)
	}
	return cred.id, nil
}

// WalletSecret returns the one-time secret of the named wallet.
func (tc *TestContext) WalletSecret(alias string) (string, error) {
	cred, ok := tc.wallets[alias]
	if !ok {
		return "", fmt.Errorf("unknown wallet alias %q", alias)
	}
	return cred.secret, nil
}

// Status returns the last response status code.
func (tc *TestContext) Status() int {
	return tc.lastStatus
}

// Field returns a top-level field of the last JSON response.
func (tc *TestContext) Field(name string) (any, error) {
	if tc.lastBody == nil {
		return nil, fmt.Errorf("last response had no JSON body")
	}
	value, ok := tc.lastBody[name]
	if !ok {
		return nil, fmt.Errorf("response has no field %q", name)
	}
	return value, nil
}
