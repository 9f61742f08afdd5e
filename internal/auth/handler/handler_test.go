package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"lineage/internal/auth/models"
	"lineage/internal/auth/service"
	credentialstore "lineage/internal/auth/store/credential"
	"lineage/internal/auth/token"
	"lineage/pkg/platform/eventlog/publisher"
	eventmemory "lineage/pkg/platform/eventlog/store/memory"
)

// HandlerSuite drives the auth endpoints through the full middleware
// chain against real components.
type HandlerSuite struct {
	suite.Suite
	router http.Handler
	tokens *token.Service
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := publisher.NewPublisher(eventmemory.NewInMemoryStore())
	s.tokens = token.NewService("test-signing-key", "lineage-test", time.Hour)
	svc := service.New(credentialstore.NewInMemory(), events, s.tokens, service.WithLogger(logger))
	h := New(svc, logger, nil)

	r := chi.NewRouter()
	h.Register(r)
	s.router = r
}

func (s *HandlerSuite) post(path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(http.MethodPost, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) mustWallet() models.WalletCredentials {
	rec := s.post("/v1/wallets", nil)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var creds models.WalletCredentials
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&creds))
	return creds
}

func (s *HandlerSuite) TestCreateWallet() {
	rec := s.post("/v1/wallets", nil)
	s.Require().Equal(http.StatusCreated, rec.Code)
	s.NotEmpty(rec.Header().Get("X-Request-ID"))

	var body map[string]string
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	s.NotEmpty(body["wallet_id"])
	s.NotEmpty(body["wallet_secret"])
}

func (s *HandlerSuite) TestIssueToken() {
	creds := s.mustWallet()

	rec := s.post("/v1/tokens", TokenRequest{
		WalletID:     creds.Wallet.String(),
		WalletSecret: creds.Secret,
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var issued models.Token
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&issued))
	s.Equal("Bearer", issued.TokenType)
	s.Equal(int64(3600), issued.ExpiresIn)

	wallet, err := s.tokens.VerifyToken(issued.AccessToken)
	s.Require().NoError(err)
	s.Equal(creds.Wallet, wallet)
}

func (s *HandlerSuite) TestIssueTokenRejectsBadInput() {
	s.Run("missing wallet_id", func() {
		rec := s.post("/v1/tokens", TokenRequest{WalletSecret: "x"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("malformed wallet_id", func() {
		rec := s.post("/v1/tokens", TokenRequest{WalletID: "not-a-uuid", WalletSecret: "x"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("missing wallet_secret", func() {
		creds := s.mustWallet()
		rec := s.post("/v1/tokens", TokenRequest{WalletID: creds.Wallet.String()})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown body field", func() {
		rec := s.post("/v1/tokens", map[string]any{
			"wallet_id":     "00000000-0000-0000-0000-000000000001",
			"wallet_secret": "x",
			"grant_type":    "password",
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestIssueTokenRejectsWrongSecret() {
	creds := s.mustWallet()

	rec := s.post("/v1/tokens", TokenRequest{
		WalletID:     creds.Wallet.String(),
		WalletSecret: "not-the-secret",
	})
	s.Equal(http.StatusUnauthorized, rec.Code)

	var body map[string]string
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	s.Equal("unauthorized", body["error"])
}
