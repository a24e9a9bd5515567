package relay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"

	"github.com/cucumber/godog"
)

const (
	messagesPath = "/api/messages"
	callbackPath = "/verification/callback"
	signalType   = "VERIFICATION_SUCCESS"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	POST(path string, body any, headers map[string]string) error
	GetStatuses() []int
}

// RegisterSteps registers callback and cross-window relay steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &relaySteps{tc: tc}

	ctx.Step(`^the provider redirects to the callback for session "([^"]*)" with status "([^"]*)"$`, steps.callbackWithStatus)
	ctx.Step(`^the provider redirects to the callback for session "([^"]*)" without a status$`, steps.callbackWithoutStatus)
	ctx.Step(`^I relay a verification message for session "([^"]*)" from origin "([^"]*)"$`, steps.relayMessage)
	ctx.Step(`^I relay a message of type "([^"]*)" for session "([^"]*)"$`, steps.relayTyped)
	ctx.Step(`^I relay (\d+) verification messages for session "([^"]*)"$`, steps.relayMany)
	ctx.Step(`^some relay requests should be rejected with status (\d+)$`, steps.someRejectedWith)
}

type relaySteps struct {
	tc TestContext
}

func (s *relaySteps) callbackWithStatus(ctx context.Context, sessionID, status string) error {
	q := url.Values{"verificationSessionId": {sessionID}, "status": {status}}
	return s.tc.GET(callbackPath+"?"+q.Encode(), nil)
}

func (s *relaySteps) callbackWithoutStatus(ctx context.Context, sessionID string) error {
	q := url.Values{"verificationSessionId": {sessionID}}
	return s.tc.GET(callbackPath+"?"+q.Encode(), nil)
}

func (s *relaySteps) relayMessage(ctx context.Context, sessionID, origin string) error {
	return s.tc.POST(messagesPath, message(signalType, sessionID), map[string]string{"Origin": origin})
}

func (s *relaySteps) relayTyped(ctx context.Context, typ, sessionID string) error {
	return s.tc.POST(messagesPath, message(typ, sessionID), nil)
}

func (s *relaySteps) relayMany(ctx context.Context, n int, sessionID string) error {
	for range n {
		if err := s.tc.POST(messagesPath, message(signalType, sessionID), nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *relaySteps) someRejectedWith(ctx context.Context, status int) error {
	statuses := s.tc.GetStatuses()
	if !slices.Contains(statuses, status) {
		return fmt.Errorf("no request returned %d (%s) among %v", status, http.StatusText(status), statuses)
	}
	return nil
}

func message(typ, sessionID string) map[string]string {
	return map[string]string{"type": typ, "sessionId": sessionID, "status": "Approved"}
}
