package e2e

import (
	"github.com/cucumber/godog"

	"verigate/e2e/steps/common"
	"verigate/e2e/steps/relay"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	relay.RegisterSteps(ctx, tc)
}
