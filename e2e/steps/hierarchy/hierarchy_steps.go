// Package hierarchy holds step definitions for registry and agent tree
// operations.
package hierarchy

import (
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the suite context these steps need.
type TestContext interface {
	POST(path string, body map[string]any) error
	GET(path string) error
	ActAs(alias string) error
	WalletID(alias string) (string, error)
	Status() int
}

type hierarchySteps struct {
	tc TestContext
}

// RegisterSteps registers the hierarchy step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	s := &hierarchySteps{tc: tc}

	ctx.Step(`^"([^"]*)" ensures the registry exists$`, s.ensuresTheRegistryExists)
	ctx.Step(`^"([^"]*)" initializes the registry$`, s.initializesTheRegistry)
	ctx.Step(`^"([^"]*)" registers a root agent named "([^"]*)"$`, s.registersARootAgent)
	ctx.Step(`^"([^"]*)" spawns "([^"]*)" named "([^"]*)" with share (\d+) bps$`, s.spawnsChild)
	ctx.Step(`^"([^"]*)" records an earning of (\d+)$`, s.recordsAnEarning)
	ctx.Step(`^"([^"]*)" distributes (\d+) to its parent$`, s.distributesToParent)
	ctx.Step(`^"([^"]*)" deactivates "([^"]*)"$`, s.deactivates)
	ctx.Step(`^I fetch the registry$`, s.iFetchTheRegistry)
	ctx.Step(`^I fetch the agent of "([^"]*)"$`, s.iFetchTheAgent)
	ctx.Step(`^I fetch the children of "([^"]*)"$`, s.iFetchTheChildren)
	ctx.Step(`^I fetch the events of "([^"]*)"$`, s.iFetchTheEvents)
}

// ensuresTheRegistryExists tolerates a registry initialized by an
// earlier scenario or a previous run against the same server.
func (s *hierarchySteps) ensuresTheRegistryExists(alias string) error {
	if err := s.initializesTheRegistry(alias); err != nil {
		return err
	}
	if s.tc.Status() != http.StatusCreated && s.tc.Status() != http.StatusConflict {
		return fmt.Errorf("ensure registry: unexpected status %d", s.tc.Status())
	}
	return nil
}

func (s *hierarchySteps) initializesTheRegistry(alias string) error {
	if err := s.tc.ActAs(alias); err != nil {
		return err
	}
	return s.tc.POST("/v1/registry", nil)
}

func (s *hierarchySteps) registersARootAgent(alias, name string) error {
	if err := s.tc.ActAs(alias); err != nil {
		return err
	}
	return s.tc.POST("/v1/agents/root", map[string]any{
		"name":           name,
		"specialization": "orchestration",
	})
}

func (s *hierarchySteps) spawnsChild(parent, child, name string, shareBps int) error {
	if err := s.tc.ActAs(parent); err != nil {
		return err
	}
	childWallet, err := s.tc.WalletID(child)
	if err != nil {
		return err
	}
	return s.tc.POST("/v1/agents/spawn", map[string]any{
		"child_wallet":      childWallet,
		"name":              name,
		"specialization":    "analysis",
		"revenue_share_bps": shareBps,
	})
}

func (s *hierarchySteps) recordsAnEarning(alias string, amount int) error {
	if err := s.tc.ActAs(alias); err != nil {
		return err
	}
	return s.tc.POST("/v1/agents/earnings", map[string]any{
		"amount": amount,
	})
}

func (s *hierarchySteps) distributesToParent(alias string, amount int) error {
	if err := s.tc.ActAs(alias); err != nil {
		return err
	}
	return s.tc.POST("/v1/agents/distributions", map[string]any{
		"amount": amount,
	})
}

func (s *hierarchySteps) deactivates(actor, target string) error {
	if err := s.tc.ActAs(actor); err != nil {
		return err
	}
	wallet, err := s.tc.WalletID(target)
	if err != nil {
		return err
	}
	return s.tc.POST("/v1/agents/"+wallet+"/deactivate", nil)
}

func (s *hierarchySteps) iFetchTheRegistry() error {
	return s.tc.GET("/v1/registry")
}

func (s *hierarchySteps) iFetchTheAgent(alias string) error {
	wallet, err := s.tc.WalletID(alias)
	if err != nil {
		return err
	}
	return s.tc.GET("/v1/agents/" + wallet)
}

func (s *hierarchySteps) iFetchTheChildren(alias string) error {
	wallet, err := s.tc.WalletID(alias)
	if err != nil {
		return err
	}
	return s.tc.GET("/v1/agents/" + wallet + "/children")
}

func (s *hierarchySteps) iFetchTheEvents(alias string) error {
	wallet, err := s.tc.WalletID(alias)
	if err != nil {
		return err
	}
	return s.tc.GET("/v1/agents/" + wallet + "/events")
}
