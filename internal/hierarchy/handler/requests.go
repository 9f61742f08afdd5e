package handler

import (
	"strings"

	"github.com/asaskevich/govalidator"

	"lineage/internal/hierarchy/models"
	dErrors "lineage/pkg/domain-errors"
	"lineage/pkg/platform/eventlog"
)

// RegisterRootRequest is the body of POST /v1/agents/root.
type RegisterRootRequest struct {
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}

// SpawnChildRequest is the body of POST /v1/agents/spawn. The caller's
// own agent becomes the parent; child_wallet identifies the wallet that
// will back the new agent.
type SpawnChildRequest struct {
	ChildWallet     string `json:"child_wallet"`
	Name            string `json:"name"`
	Specialization  string `json:"specialization"`
	RevenueShareBps uint16 `json:"revenue_share_bps"`
}

// Normalize trims the wallet identifier. Name and specialization are
// stored exactly as sent.
func (r *SpawnChildRequest) Normalize() {
	r.ChildWallet = strings.TrimSpace(r.ChildWallet)
}

// Validate checks the structural shape of the request. Domain limits
// (name length, share bounds, depth) are enforced by the service.
func (r *SpawnChildRequest) Validate() error {
	if r.ChildWallet == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "child_wallet is required")
	}
	if !govalidator.IsUUID(r.ChildWallet) {
		return dErrors.New(dErrors.CodeInvalidInput, "child_wallet must be a valid UUID")
	}
	return nil
}

// RecordEarningRequest is the body of POST /v1/agents/earnings.
type RecordEarningRequest struct {
	Amount uint64 `json:"amount"`
}

// DistributeRequest is the body of POST /v1/agents/distributions.
type DistributeRequest struct {
	Amount uint64 `json:"amount"`
}

type childrenResponse struct {
	Children []*models.AgentAccount `json:"children"`
}

type eventsResponse struct {
	Events []eventlog.Event `json:"events"`
}
