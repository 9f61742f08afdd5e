package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"lineage/internal/treasury/models"
	"lineage/internal/treasury/service"
	balancestore "lineage/internal/treasury/store/balance"
	id "lineage/pkg/domain"
	"lineage/pkg/platform/eventlog/publisher"
	eventmemory "lineage/pkg/platform/eventlog/store/memory"
	"lineage/pkg/platform/tx"
)

// staticVerifier accepts tokens of the form "tok-<wallet uuid>".
type staticVerifier struct{}

func (staticVerifier) VerifyToken(token string) (id.WalletID, error) {
	raw, ok := strings.CutPrefix(token, "tok-")
	if !ok {
		return id.WalletID{}, errors.New("unknown token")
	}
	wallet, err := id.ParseWalletID(raw)
	if err != nil {
		return id.WalletID{}, errors.New("unknown token")
	}
	return wallet, nil
}

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	wallet id.WalletID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := publisher.NewPublisher(eventmemory.NewInMemoryStore())
	svc := service.New(balancestore.NewInMemory(), events, tx.NewMemoryRunner(), service.WithLogger(logger))
	h := New(svc, staticVerifier{}, logger, nil)

	r := chi.NewRouter()
	h.Register(r)
	s.router = r

	s.wallet = id.NewWalletID()
}

func (s *HandlerSuite) do(method, path string, wallet id.WalletID, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !wallet.IsNil() {
		req.Header.Set("Authorization", "Bearer tok-"+wallet.String())
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decodeBalance(rec *httptest.ResponseRecorder) models.Balance {
	var balance models.Balance
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&balance))
	return balance
}

func (s *HandlerSuite) TestDeposit() {
	rec := s.do(http.MethodPost, "/v1/treasury/deposits", s.wallet, DepositRequest{Amount: 500})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	balance := s.decodeBalance(rec)
	s.Equal(s.wallet, balance.Wallet)
	s.Equal(uint64(500), balance.Amount)

	rec = s.do(http.MethodPost, "/v1/treasury/deposits", s.wallet, DepositRequest{Amount: 250})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(uint64(750), s.decodeBalance(rec).Amount)
}

func (s *HandlerSuite) TestDepositRejectsBadInput() {
	s.Run("zero amount", func() {
		rec := s.do(http.MethodPost, "/v1/treasury/deposits", s.wallet, DepositRequest{Amount: 0})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown body field", func() {
		rec := s.do(http.MethodPost, "/v1/treasury/deposits", s.wallet, map[string]any{
			"amount": 10,
			"memo":   "lunch",
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestDepositRequiresToken() {
	rec := s.do(http.MethodPost, "/v1/treasury/deposits", id.WalletID{}, DepositRequest{Amount: 10})
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestBalance() {
	rec := s.do(http.MethodGet, "/v1/treasury/balance", s.wallet, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(uint64(0), s.decodeBalance(rec).Amount)

	s.do(http.MethodPost, "/v1/treasury/deposits", s.wallet, DepositRequest{Amount: 300})

	rec = s.do(http.MethodGet, "/v1/treasury/balance", s.wallet, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(uint64(300), s.decodeBalance(rec).Amount)
}

func (s *HandlerSuite) TestBalanceRequiresToken() {
	rec := s.do(http.MethodGet, "/v1/treasury/balance", id.WalletID{}, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
}
