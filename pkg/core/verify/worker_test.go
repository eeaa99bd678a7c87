package verify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliciakaith/flowgrid/pkg/core/guard"
	"github.com/aliciakaith/flowgrid/pkg/storage"
	"github.com/aliciakaith/flowgrid/pkg/storage/sqlite"
)

// recordingBus 记录广播事件的总线替身
type recordingBus struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBus) Publish(orgID, event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, orgID+"/"+event)
}

func (b *recordingBus) count(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e == event {
			n++
		}
	}
	return n
}

func setupWorkerTest(t *testing.T) (*Worker, *recordingBus, *storage.Store, string) {
	t.Helper()

	db, err := sqlx.Open("sqlite3", filepath.Join(t.TempDir(), "verify_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewStore(db, sqlite.NewSQLiteDialect())
	require.NoError(t, err)

	org, err := store.Orgs.Create(context.Background(), fmt.Sprintf("org-%s", t.Name()))
	require.NoError(t, err)

	bus := &recordingBus{}
	worker := NewWorker(store, bus, &guard.Guard{AllowPrivate: true})
	worker.SetDeferral(50 * time.Millisecond)
	t.Cleanup(worker.Stop)

	return worker, bus, store, org.ID
}

// waitForStatus 轮询集成状态直到离开pending
func waitForStatus(t *testing.T, store *storage.Store, orgID, id string, timeout time.Duration) *storage.Integration {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		item, err := store.Integrations.GetByID(context.Background(), orgID, id)
		require.NoError(t, err)
		if item.Status != storage.IntegrationStatusPending {
			return item
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("等待验证结果超时")
	return nil
}

func TestWorker_ProbeSuccess(t *testing.T) {
	worker, bus, store, orgID := setupWorkerTest(t)
	ctx := context.Background()

	var gotAuth, gotAPIKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAPIKey = r.Header.Get("X-Api-Key")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	item, err := store.Integrations.Create(ctx, orgID, "Stripe Test", server.URL)
	require.NoError(t, err)

	require.NoError(t, worker.Enqueue(ctx, Request{
		IntegrationID: item.ID,
		OrgID:         orgID,
		Name:          item.Name,
		APIKey:        "sk_test_abc",
		TestURL:       server.URL,
	}))

	// 入队后立即可见pending
	pending, err := store.Integrations.GetByID(ctx, orgID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.IntegrationStatusPending, pending.Status)

	final := waitForStatus(t, store, orgID, item.ID, 5*time.Second)
	assert.Equal(t, storage.IntegrationStatusActive, final.Status)
	require.NotNil(t, final.LastChecked)

	// sk_前缀只走Bearer
	assert.Equal(t, "Bearer sk_test_abc", gotAuth)
	assert.Empty(t, gotAPIKey)

	// info通知 + 两次integrations:update广播
	notifications, err := store.Notifications.ListByOrg(ctx, orgID, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, storage.NotifyInfo, notifications[0].Type)
	assert.Contains(t, notifications[0].Title, "Integration active")

	assert.GreaterOrEqual(t, bus.count(orgID+"/integrations:update"), 2)
}

func TestWorker_ProbeUnauthorized(t *testing.T) {
	worker, _, store, orgID := setupWorkerTest(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	item, err := store.Integrations.Create(ctx, orgID, "Broken", server.URL)
	require.NoError(t, err)

	require.NoError(t, worker.Enqueue(ctx, Request{
		IntegrationID: item.ID,
		OrgID:         orgID,
		Name:          item.Name,
		APIKey:        "plain-key",
		TestURL:       server.URL,
	}))

	final := waitForStatus(t, store, orgID, item.ID, 5*time.Second)
	assert.Equal(t, storage.IntegrationStatusError, final.Status)

	notifications, err := store.Notifications.ListByOrg(ctx, orgID, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, storage.NotifyError, notifications[0].Type)
	assert.Contains(t, notifications[0].Message, "401")
}

func TestWorker_NoTestURL(t *testing.T) {
	worker, _, store, orgID := setupWorkerTest(t)
	ctx := context.Background()

	// 名称推断不出provider，也没有test_url
	item, err := store.Integrations.Create(ctx, orgID, "Mystery System", "")
	require.NoError(t, err)

	require.NoError(t, worker.Enqueue(ctx, Request{
		IntegrationID: item.ID,
		OrgID:         orgID,
		Name:          item.Name,
	}))

	final := waitForStatus(t, store, orgID, item.ID, 5*time.Second)
	assert.Equal(t, storage.IntegrationStatusError, final.Status)

	notifications, err := store.Notifications.ListByOrg(ctx, orgID, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Contains(t, notifications[0].Message, "no valid Test URL")
}

func TestWorker_ReverifyIdempotent(t *testing.T) {
	worker, _, store, orgID := setupWorkerTest(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	item, err := store.Integrations.Create(ctx, orgID, "Stable", server.URL)
	require.NoError(t, err)

	req := Request{IntegrationID: item.ID, OrgID: orgID, Name: item.Name, TestURL: server.URL}

	require.NoError(t, worker.Enqueue(ctx, req))
	first := waitForStatus(t, store, orgID, item.ID, 5*time.Second)
	assert.Equal(t, storage.IntegrationStatusActive, first.Status)

	// 同凭证重验：仍为active，last_checked被刷新
	require.NoError(t, worker.Enqueue(ctx, req))
	second := waitForStatus(t, store, orgID, item.ID, 5*time.Second)
	assert.Equal(t, storage.IntegrationStatusActive, second.Status)
	assert.False(t, second.LastChecked.Before(*first.LastChecked))
}

func TestDefaultProbeURL(t *testing.T) {
	assert.Equal(t, "https://api.stripe.com/v1/charges?limit=1", defaultProbeURL("Stripe Test"))
	assert.Contains(t, defaultProbeURL("my flutterwave prod"), "flutterwave.com")
	assert.Contains(t, defaultProbeURL("MTN MoMo"), "mtn.com")
	assert.Empty(t, defaultProbeURL("Mystery System"))
}
