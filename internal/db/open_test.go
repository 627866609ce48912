package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/config"
)

func TestOpenSQLiteWithoutFirebase(t *testing.T) {
	cfg := &config.Config{StoreDriver: config.StoreSQLite, SQLitePath: filepath.Join(t.TempDir(), "nested", "open.db")}
	store, authClient, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	assert.Nil(t, authClient)
	assert.IsType(t, &SQLiteStore{}, store)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, _, err := Open(context.Background(), &config.Config{StoreDriver: "mongo"}, zap.NewNop())
	assert.Error(t, err)
}
