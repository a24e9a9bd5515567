package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "verigate/pkg/platform/audit"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	require.NoError(t, s.Append(ctx, audit.Event{AttemptID: "a1", Action: "one"}))
	require.NoError(t, s.Append(ctx, audit.Event{AttemptID: "a2", Action: "two"}))
	require.NoError(t, s.Append(ctx, audit.Event{AttemptID: "a1", Action: "three"}))

	byAttempt, err := s.ListByAttempt(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, byAttempt, 2)
	assert.Equal(t, "one", byAttempt[0].Action)
	assert.Equal(t, "three", byAttempt[1].Action)

	recent, err := s.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "two", recent[0].Action)

	all, err := s.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	s.Clear()
	assert.Zero(t, s.Len())
}
