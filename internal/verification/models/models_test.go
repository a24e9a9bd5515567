package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"Approved":  StatusApproved,
		"approved":  StatusApproved,
		" Declined": StatusDeclined,
		"rejected":  StatusRejected,
		"in_review": StatusInReview,
		"In Review": StatusInReview,
		"pending":   StatusPending,
		"Abandoned": Status("Abandoned"),
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseStatus(raw), raw)
	}
}

func TestStatusClassification(t *testing.T) {
	assert.True(t, StatusApproved.IsTerminal())
	assert.True(t, StatusDeclined.IsNegative())
	assert.True(t, StatusRejected.IsNegative())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusInReview.IsTerminal())
	assert.False(t, Status("Abandoned").IsTerminal())
}

func TestVerifiedSessionExpired(t *testing.T) {
	verifiedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	v := VerifiedSession{VerifiedAt: verifiedAt}
	ttl := 48 * time.Hour

	assert.False(t, v.Expired(verifiedAt.Add(ttl-time.Millisecond), ttl))
	assert.True(t, v.Expired(verifiedAt.Add(ttl), ttl))
	assert.True(t, v.Expired(verifiedAt.Add(ttl+time.Hour), ttl))
}

func TestFlowPollInterval(t *testing.T) {
	assert.Equal(t, 3*time.Second, ParseFlow("captcha").PollInterval())
	assert.Equal(t, 30*time.Second, ParseFlow("LONG_FORM").PollInterval())
	assert.Equal(t, FlowCaptcha, ParseFlow(""))
}
