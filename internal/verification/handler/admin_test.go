package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verigate/internal/verification/cache"
	"verigate/internal/verification/models"
	"verigate/pkg/platform/audit"
	"verigate/pkg/platform/audit/publisher"
	auditmemory "verigate/pkg/platform/audit/store/memory"
	"verigate/pkg/platform/middleware/admin"
	"verigate/pkg/testutil"
)

func newAdminRouter(t *testing.T) (chi.Router, *cache.InMemoryStore, *publisher.Publisher) {
	t.Helper()
	store := cache.NewInMemory()
	events := publisher.NewPublisher(auditmemory.NewInMemoryStore())
	r := chi.NewRouter()
	NewAdmin(store, events, "secret", slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r, store, events
}

func TestAdminEvict(t *testing.T) {
	r, store, _ := newAdminRouter(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "alice@example.com", "s1", models.StatusApproved))

	t.Run("requires the admin token", func(t *testing.T) {
		rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodDelete, "/admin/cache?subject=alice@example.com"))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("evicts the subject", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodDelete, "/admin/cache?subject=alice@example.com")
		req.Header.Set(admin.HeaderToken, "secret")
		rr := testutil.DoRequest(r, req)
		testutil.AssertStatus(t, rr, http.StatusNoContent)

		hit, err := store.Get(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Nil(t, hit)
	})

	t.Run("subject is required", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodDelete, "/admin/cache")
		req.Header.Set(admin.HeaderToken, "secret")
		testutil.AssertStatus(t, testutil.DoRequest(r, req), http.StatusBadRequest)
	})
}

func TestAdminAuditTrail(t *testing.T) {
	r, _, events := newAdminRouter(t)
	require.NoError(t, events.Emit(context.Background(), audit.Event{
		Action:    string(audit.EventVerificationApproved),
		AttemptID: "a1",
	}))

	req := testutil.NewRequest(t, http.MethodGet, "/admin/attempts/a1/audit")
	req.Header.Set(admin.HeaderToken, "secret")
	rr := testutil.DoRequest(r, req)
	testutil.AssertStatusOK(t, rr)

	body := testutil.UnmarshalResponse[struct {
		Events []audit.Event `json:"events"`
	}](t, rr)
	require.Len(t, body.Events, 1)
	assert.Equal(t, audit.CategoryCompliance, body.Events[0].Category)
}
