package audit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/audit/store/memory"
)

type failingStore struct{ err error }

func (f failingStore) Append(context.Context, audit.Event) error { return f.err }

func TestTeeStore(t *testing.T) {
	ctx := context.Background()

	t.Run("fans out and lists from primary", func(t *testing.T) {
		primary := memory.NewInMemoryStore()
		sink := memory.NewInMemoryStore()
		tee := audit.NewTeeStore(primary, sink)

		require.NoError(t, tee.Append(ctx, audit.Event{Action: "verification_started", AttemptID: "a1"}))

		got, err := tee.ListByAttempt(ctx, "a1")
		require.NoError(t, err)
		assert.Len(t, got, 1)
		fromSink, err := sink.ListByAttempt(ctx, "a1")
		require.NoError(t, err)
		assert.Len(t, fromSink, 1)
	})

	t.Run("sink failure is reported but primary still written", func(t *testing.T) {
		primary := memory.NewInMemoryStore()
		boom := errors.New("kafka down")
		tee := audit.NewTeeStore(primary, failingStore{err: boom})

		err := tee.Append(ctx, audit.Event{Action: "verification_started", AttemptID: "a2"})
		assert.ErrorIs(t, err, boom)

		got, err := primary.ListByAttempt(ctx, "a2")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("listing needs a listable primary", func(t *testing.T) {
		tee := audit.NewTeeStore(failingStore{})
		_, err := tee.ListByAttempt(ctx, "a1")
		assert.Error(t, err)
	})
}
