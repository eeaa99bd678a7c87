package storage_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/aliciakaith/flowgrid/pkg/storage"
	"github.com/aliciakaith/flowgrid/pkg/storage/sqlite"
)

// setupStore 创建临时sqlite存储
func setupStore(t *testing.T) *storage.Store {
	t.Helper()

	db, err := sqlx.Open("sqlite3", filepath.Join(t.TempDir(), "store_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range sqlite.NewSQLiteDialect().ConfigureDB() {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	store, err := storage.NewStore(db, sqlite.NewSQLiteDialect())
	require.NoError(t, err)
	return store
}

// createOrg 建组织
func createOrg(t *testing.T, store *storage.Store) *storage.Organization {
	t.Helper()
	org, err := store.Orgs.Create(context.Background(), fmt.Sprintf("org-%s", t.Name()))
	require.NoError(t, err)
	return org
}

func TestStore_SchemaIdempotent(t *testing.T) {
	store := setupStore(t)

	// 二次初始化不报错（IF NOT EXISTS语义）
	_, err := storage.NewStore(store.DB(), sqlite.NewSQLiteDialect())
	require.NoError(t, err)
}
