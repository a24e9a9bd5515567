package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventCategory(t *testing.T) {
	assert.Equal(t, CategoryCompliance, EventVerificationApproved.Category())
	assert.Equal(t, CategorySecurity, EventSignalRejected.Category())
	assert.Equal(t, CategoryOperations, EventVerificationStarted.Category())
	assert.Equal(t, CategoryOperations, AuditEvent("something_new").Category())
}

func TestHashSubject(t *testing.T) {
	h := HashSubject("a@b.com")
	assert.Len(t, h, 64)
	assert.NotContains(t, h, "a@b.com")
	assert.Equal(t, h, HashSubject("a@b.com"))
	assert.NotEqual(t, h, HashSubject("A@b.com"))
	assert.Empty(t, HashSubject(""))
}

func TestNormalize(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	e := Normalize(Event{Action: string(EventVerificationDeclined)}, now)
	assert.Equal(t, now, e.Timestamp)
	assert.Equal(t, CategoryCompliance, e.Category)

	earlier := now.Add(-time.Hour)
	e = Normalize(Event{Action: "x", Timestamp: earlier, Category: CategorySecurity}, now)
	assert.Equal(t, earlier, e.Timestamp)
	assert.Equal(t, CategorySecurity, e.Category)
}
