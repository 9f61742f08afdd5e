package e2e

import (
	"fmt"
	"strings"

	"github.com/cucumber/godog"

	"lineage/e2e/steps/hierarchy"
	"lineage/e2e/steps/treasury"
	"lineage/e2e/steps/wallet"
)

// RegisterSteps registers all step definitions from the modular step
// packages plus the shared response assertions.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	wallet.RegisterSteps(ctx, tc)
	hierarchy.RegisterSteps(ctx, tc)
	treasury.RegisterSteps(ctx, tc)

	ctx.Step(`^the response status should be (\d+)$`, tc.theResponseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, tc.theResponseFieldShouldBeString)
	ctx.Step(`^the response field "([^"]*)" should be (\d+)$`, tc.theResponseFieldShouldBeNumber)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, tc.theResponseFieldShouldBeBool)
	ctx.Step(`^the response should contain field "([^"]*)"$`, tc.theResponseShouldContainField)
	ctx.Step(`^the error code should be "([^"]*)"$`, tc.theErrorCodeShouldBe)
	ctx.Step(`^the events should include "([^"]*)"$`, tc.theEventsShouldInclude)
	ctx.Step(`^the children should include one named "([^"]*)"$`, tc.theChildrenShouldIncludeNamed)
}

func (tc *TestContext) theResponseStatusShouldBe(expected int) error {
	if tc.lastStatus != expected {
		return fmt.Errorf("expected status %d, got %d (body: %v)", expected, tc.lastStatus, tc.lastBody)
	}
	return nil
}

func (tc *TestContext) theResponseFieldShouldBeString(name, expected string) error {
	value, err := tc.Field(name)
	if err != nil {
		return err
	}
	if fmt.Sprint(value) != expected {
		return fmt.Errorf("expected field %q to be %q, got %v", name, expected, value)
	}
	return nil
}

func (tc *TestContext) theResponseFieldShouldBeNumber(name string, expected int) error {
	value, err := tc.Field(name)
	if err != nil {
		return err
	}
	// Numeric fields arrive as json.Number strings or float64 depending
	// on size; compare through the printed form.
	if fmt.Sprint(value) != fmt.Sprint(expected) {
		got, ok := value.(float64)
		if !ok || int(got) != expected {
			return fmt.Errorf("expected field %q to be %d, got %v", name, expected, value)
		}
	}
	return nil
}

func (tc *TestContext) theResponseFieldShouldBeBool(name, expected string) error {
	value, err := tc.Field(name)
	if err != nil {
		return err
	}
	if fmt.Sprint(value) != expected {
		return fmt.Errorf("expected field %q to be %s, got %v", name, expected, value)
	}
	return nil
}

func (tc *TestContext) theResponseShouldContainField(name string) error {
	_, err := tc.Field(name)
	return err
}

func (tc *TestContext) theErrorCodeShouldBe(expected string) error {
	value, err := tc.Field("error")
	if err != nil {
		return err
	}
	if fmt.Sprint(value) != expected {
		return fmt.Errorf("expected error code %q, got %v", expected, value)
	}
	return nil
}

func (tc *TestContext) theEventsShouldInclude(action string) error {
	value, err := tc.Field("events")
	if err != nil {
		return err
	}
	events, ok := value.([]any)
	if !ok {
		return fmt.Errorf("events field is not a list: %T", value)
	}
	for _, raw := range events {
		event, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if fmt.Sprint(event["action"]) == action {
			return nil
		}
	}
	return fmt.Errorf("no event of type %q among %d events", action, len(events))
}

func (tc *TestContext) theChildrenShouldIncludeNamed(name string) error {
	value, err := tc.Field("children")
	if err != nil {
		return err
	}
	children, ok := value.([]any)
	if !ok {
		return fmt.Errorf("children field is not a list: %T", value)
	}
	var names []string
	for _, raw := range children {
		child, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		got := fmt.Sprint(child["name"])
		if got == name {
			return nil
		}
		names = append(names, got)
	}
	return fmt.Errorf("no child named %q among [%s]", name, strings.Join(names, ", "))
}
