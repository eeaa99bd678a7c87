package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
	"github.com/aliciakaith/flowgrid/pkg/storage"
	"github.com/aliciakaith/flowgrid/pkg/storage/sqlite"
)

func setupProviderTest(t *testing.T, flwBaseURL string) (*Registry, *storage.Store, string) {
	t.Helper()

	db, err := sqlx.Open("sqlite3", filepath.Join(t.TempDir(), "provider_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewStore(db, sqlite.NewSQLiteDialect())
	require.NoError(t, err)

	org, err := store.Orgs.Create(context.Background(), fmt.Sprintf("org-%s", t.Name()))
	require.NoError(t, err)

	registry := NewRegistry(store.TxEvents,
		MTNCredentials{},
		FlutterwaveCredentials{BaseURL: flwBaseURL, SecretKey: "FLWSECK_TEST-x", WebhookSecret: "whsec"},
	)
	return registry, store, org.ID
}

func TestFlutterwave_VerifyByReference(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status": "success", "data": {"amount": 500, "currency": "NGN"}}`)
	}))
	defer server.Close()

	registry, store, orgID := setupProviderTest(t, server.URL)
	ctx := context.Background()

	out, err := registry.Flutterwave.VerifyByReference(ctx, orgID, "tx-123")
	require.NoError(t, err)
	assert.Equal(t, 200, out["status"])
	data, ok := out["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(500), data["amount"])

	assert.Equal(t, "/v3/transactions/verify_by_reference?tx_ref=tx-123", gotPath)
	assert.Equal(t, "Bearer FLWSECK_TEST-x", gotAuth)

	// 每次对外调用追加一条成功采样
	summary, err := store.TxEvents.SummaryByOrg(ctx, orgID, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.SuccessCount)
}

func TestFlutterwave_MissingTxRef(t *testing.T) {
	registry, _, orgID := setupProviderTest(t, "http://unused.test")

	_, err := registry.Flutterwave.VerifyByReference(context.Background(), orgID, "")
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestFlutterwave_WebhookSignature(t *testing.T) {
	registry, _, _ := setupProviderTest(t, "http://unused.test")

	assert.True(t, registry.Flutterwave.VerifyWebhookSignature("whsec"))
	assert.False(t, registry.Flutterwave.VerifyWebhookSignature("wrong"))
	assert.False(t, registry.Flutterwave.VerifyWebhookSignature(""))
}

func TestRegistry_UnknownOperation(t *testing.T) {
	registry, _, orgID := setupProviderTest(t, "http://unused.test")

	_, err := registry.Execute(context.Background(), orgID, "acme.doThing", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestRegistry_PassthroughProviders(t *testing.T) {
	registry, _, orgID := setupProviderTest(t, "http://unused.test")

	out, err := registry.Execute(context.Background(), orgID, "database", map[string]any{"table": "users"})
	require.NoError(t, err)
	assert.Equal(t, true, out["queued"])
	assert.Equal(t, "database", out["provider"])
}
