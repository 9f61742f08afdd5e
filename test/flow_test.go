package test

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	authhandler "lineage/internal/auth/handler"
	authservice "lineage/internal/auth/service"
	credentialstore "lineage/internal/auth/store/credential"
	"lineage/internal/auth/token"
	hierarchyhandler "lineage/internal/hierarchy/handler"
	hierarchyservice "lineage/internal/hierarchy/service"
	agentstore "lineage/internal/hierarchy/store/agent"
	registrystore "lineage/internal/hierarchy/store/registry"
	treasuryhandler "lineage/internal/treasury/handler"
	treasuryservice "lineage/internal/treasury/service"
	balancestore "lineage/internal/treasury/store/balance"
	"lineage/pkg/platform/eventlog/publisher"
	eventmemory "lineage/pkg/platform/eventlog/store/memory"
	"lineage/pkg/platform/tx"
	"lineage/pkg/testutil"
)

// newStack wires the whole service against memory stores, mirroring the
// composition in cmd/server.
func newStack(t *testing.T) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := tx.NewMemoryRunner()
	events := publisher.NewPublisher(eventmemory.NewInMemoryStore())
	tokens := token.NewService("flow-test-signing-key", "lineage-test", time.Hour)

	authSvc := authservice.New(credentialstore.NewInMemory(), events, tokens,
		authservice.WithLogger(logger))
	treasurySvc := treasuryservice.New(balancestore.NewInMemory(), events, runner,
		treasuryservice.WithLogger(logger))
	hierarchySvc := hierarchyservice.New(agentstore.NewInMemory(), registrystore.NewInMemory(),
		treasurySvc, events, runner, hierarchyservice.WithLogger(logger))

	router := chi.NewRouter()
	authhandler.New(authSvc, logger, nil).Register(router)
	hierarchyhandler.New(hierarchySvc, events, tokens, logger, nil).Register(router)
	treasuryhandler.New(treasurySvc, tokens, logger, nil).Register(router)
	return router
}

// TestAgentLifecycleFlow walks the whole surface end to end: wallets and
// tokens, registry init, root registration, spawning, earnings, treasury
// funding, distribution, and deactivation.
func TestAgentLifecycleFlow(t *testing.T) {
	stack := newStack(t)

	createWallet := func(t *testing.T) (walletID, secret string) {
		rec := testutil.DoRequest(stack, testutil.NewJSONRequest(t, http.MethodPost, "/v1/wallets", nil))
		testutil.AssertStatus(t, rec, http.StatusCreated)
		body := testutil.DecodeJSON(t, rec)
		return body["wallet_id"].(string), body["wallet_secret"].(string)
	}
	issueToken := func(t *testing.T, walletID, secret string) string {
		rec := testutil.DoRequest(stack, testutil.NewJSONRequest(t, http.MethodPost, "/v1/tokens", map[string]string{
			"wallet_id":     walletID,
			"wallet_secret": secret,
		}))
		testutil.AssertStatus(t, rec, http.StatusOK)
		return testutil.DecodeJSON(t, rec)["access_token"].(string)
	}

	var (
		authorityWallet, authorityToken string
		childWallet, childToken         string
		rootAddress                     string
	)

	testutil.Given(t, "an authority wallet with a token", func(t *testing.T) {
		var secret string
		authorityWallet, secret = createWallet(t)
		authorityToken = issueToken(t, authorityWallet, secret)
		require.NotEmpty(t, authorityToken)
	})

	testutil.When(t, "the authority initializes the registry", func(t *testing.T) {
		req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/v1/registry", nil), authorityToken)
		rec := testutil.DoRequest(stack, req)
		testutil.AssertStatus(t, rec, http.StatusCreated)

		body := testutil.DecodeJSON(t, rec)
		require.Equal(t, authorityWallet, body["authority"])
		require.EqualValues(t, 0, body["total_agents"])
	})

	testutil.When(t, "the authority registers the root agent", func(t *testing.T) {
		req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/v1/agents/root", map[string]string{
			"name":           "atlas",
			"specialization": "orchestration",
		}), authorityToken)
		rec := testutil.DoRequest(stack, req)
		testutil.AssertStatus(t, rec, http.StatusCreated)

		body := testutil.DecodeJSON(t, rec)
		rootAddress = body["address"].(string)
		require.NotEmpty(t, rootAddress)
		require.EqualValues(t, 0, body["depth"])
		require.Equal(t, true, body["is_active"])
	})

	testutil.When(t, "the root spawns a child agent", func(t *testing.T) {
		var secret string
		childWallet, secret = createWallet(t)
		childToken = issueToken(t, childWallet, secret)

		req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/v1/agents/spawn", map[string]any{
			"child_wallet":      childWallet,
			"name":              "scout",
			"specialization":    "research",
			"revenue_share_bps": 1500,
		}), authorityToken)
		rec := testutil.DoRequest(stack, req)
		testutil.AssertStatus(t, rec, http.StatusCreated)

		body := testutil.DecodeJSON(t, rec)
		require.Equal(t, rootAddress, body["parent"])
		require.EqualValues(t, 1, body["depth"])
		require.EqualValues(t, 1500, body["revenue_share_bps"])
	})

	testutil.When(t, "the child records an earning", func(t *testing.T) {
		req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/v1/agents/earnings", map[string]uint64{
			"amount": 1000,
		}), childToken)
		rec := testutil.DoRequest(stack, req)
		testutil.AssertStatus(t, rec, http.StatusOK)
		require.EqualValues(t, 1000, testutil.DecodeJSON(t, rec)["total_earned"])
	})

	testutil.When(t, "the child funds its treasury and distributes upward", func(t *testing.T) {
		req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/v1/treasury/deposits", map[string]uint64{
			"amount": 500,
		}), childToken)
		rec := testutil.DoRequest(stack, req)
		testutil.AssertStatus(t, rec, http.StatusOK)

		req = testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/v1/agents/distributions", map[string]uint64{
			"amount": 150,
		}), childToken)
		rec = testutil.DoRequest(stack, req)
		testutil.AssertStatus(t, rec, http.StatusOK)
		require.EqualValues(t, 150, testutil.DecodeJSON(t, rec)["total_distributed_to_parent"])

		testutil.Then(t, "the parent wallet holds the distributed funds", func(t *testing.T) {
			req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodGet, "/v1/treasury/balance", nil), authorityToken)
			rec := testutil.DoRequest(stack, req)
			testutil.AssertStatus(t, rec, http.StatusOK)
			require.EqualValues(t, 150, testutil.DecodeJSON(t, rec)["amount"])
		})

		testutil.Then(t, "the child wallet was debited", func(t *testing.T) {
			req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodGet, "/v1/treasury/balance", nil), childToken)
			rec := testutil.DoRequest(stack, req)
			testutil.AssertStatus(t, rec, http.StatusOK)
			require.EqualValues(t, 350, testutil.DecodeJSON(t, rec)["amount"])
		})
	})

	testutil.Then(t, "the event feed tells the child's story", func(t *testing.T) {
		rec := testutil.DoRequest(stack, testutil.NewJSONRequest(t, http.MethodGet, "/v1/agents/"+childWallet+"/events", nil))
		testutil.AssertStatus(t, rec, http.StatusOK)

		events := testutil.DecodeJSON(t, rec)["events"].([]any)
		var actions []string
		for _, raw := range events {
			actions = append(actions, raw.(map[string]any)["action"].(string))
		}
		require.Contains(t, actions, "agent_spawned")
		require.Contains(t, actions, "earning_recorded")
		require.Contains(t, actions, "revenue_distributed")
	})

	testutil.Then(t, "deactivation is terminal and visible", func(t *testing.T) {
		req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/v1/agents/"+childWallet+"/deactivate", nil), authorityToken)
		rec := testutil.DoRequest(stack, req)
		testutil.AssertStatus(t, rec, http.StatusOK)
		require.Equal(t, false, testutil.DecodeJSON(t, rec)["is_active"])

		rec = testutil.DoRequest(stack, testutil.NewJSONRequest(t, http.MethodGet, "/v1/agents/"+childWallet, nil))
		testutil.AssertStatus(t, rec, http.StatusOK)
		require.Equal(t, false, testutil.DecodeJSON(t, rec)["is_active"])
	})

	testutil.Then(t, "the registry accounts for every agent and earning", func(t *testing.T) {
		rec := testutil.DoRequest(stack, testutil.NewJSONRequest(t, http.MethodGet, "/v1/registry", nil))
		testutil.AssertStatus(t, rec, http.StatusOK)

		body := testutil.DecodeJSON(t, rec)
		require.EqualValues(t, 2, body["total_agents"])
		require.EqualValues(t, 1, body["total_spawns"])
		require.EqualValues(t, 1000, body["total_earnings"])
	})
}

// TestUnauthenticatedMutationsAreRejected sweeps every protected route.
func TestUnauthenticatedMutationsAreRejected(t *testing.T) {
	stack := newStack(t)

	routes := []string{
		"/v1/registry",
		"/v1/agents/root",
		"/v1/agents/spawn",
		"/v1/agents/earnings",
		"/v1/agents/distributions",
		"/v1/treasury/deposits",
	}
	for _, route := range routes {
		rec := testutil.DoRequest(stack, testutil.NewJSONRequest(t, http.MethodPost, route, map[string]string{}))
		testutil.AssertStatus(t, rec, http.StatusUnauthorized)
		testutil.AssertErrorCode(t, rec, "unauthorized")
	}
}
