// Package treasury holds step definitions for treasury deposits and
// balance reads.
package treasury

import (
	"github.com/cucumber/godog"
)

// TestContext is the slice of the suite context these steps need.
type TestContext interface {
	POST(path string, body map[string]any) error
	GET(path string) error
	ActAs(alias string) error
}

type treasurySteps struct {
	tc TestContext
}

// RegisterSteps registers the treasury step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	s := &treasurySteps{tc: tc}

	ctx.Step(`^"([^"]*)" deposits (\d+) into its treasury$`, s.deposits)
	ctx.Step(`^I fetch the treasury balance of "([^"]*)"$`, s.iFetchTheBalance)
}

func (s *treasurySteps) deposits(alias string, amount int) error {
	if err := s.tc.ActAs(alias); err != nil {
		return err
	}
	return s.tc.POST("/v1/treasury/deposits", map[string]any{
		"amount": amount,
	})
}

func (s *treasurySteps) iFetchTheBalance(alias string) error {
	if err := s.tc.ActAs(alias); err != nil {
		return err
	}
	return s.tc.GET("/v1/treasury/balance")
}
