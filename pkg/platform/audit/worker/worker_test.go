package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/audit/store/memory"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("down")
}

func TestWorkerDrainsUntilClosed(t *testing.T) {
	store := memory.NewInMemoryStore()
	inbox := make(chan audit.Event, 5)
	for range 5 {
		inbox <- audit.Event{Action: "x"}
	}
	close(inbox)

	NewWorker(store, inbox).Run(context.Background())
	assert.Equal(t, 5, store.Len())
}

func TestWorkerReportsFailures(t *testing.T) {
	inbox := make(chan audit.Event, 2)
	inbox <- audit.Event{Action: "a"}
	inbox <- audit.Event{Action: "b"}
	close(inbox)

	var mu sync.Mutex
	var failed []string
	NewWorker(failingStore{}, inbox, WithFailureHook(func(e audit.Event, _ error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, e.Action)
	})).Run(context.Background())

	assert.Equal(t, []string{"a", "b"}, failed)
}
