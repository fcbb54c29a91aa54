package store

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-portal/pkg/config"
)

func TestOpenMemory(t *testing.T) {
	backend, err := Open(&config.Config{Store: config.StoreConfig{Driver: config.StoreDriverMemory}}, nil)
	require.NoError(t, err)
	defer backend.Close() //nolint:errcheck
	require.NoError(t, backend.Ping(context.Background()))
	_, ok := backend.Store.(*MemoryStore)
	assert.True(t, ok)
}

func TestOpenSQLiteMigratesAndSeeds(t *testing.T) {
	cfg := &config.Config{
		Store:  config.StoreConfig{Driver: config.StoreDriverSQLite, Migrate: true},
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "portal.db")},
	}
	backend, err := Open(cfg, nil)
	require.NoError(t, err)
	defer backend.Close() //nolint:errcheck
	require.NoError(t, backend.Ping(context.Background()))

	n, err := Seed(context.Background(), backend.Store, Fixture{
		CollectionCourses: {{ID: "c1", Fields: map[string]interface{}{"name": "Database Design", "progress": 90}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := backend.Store.FetchAll(context.Background(), CollectionCourses)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Database Design", records[0].Fields["name"])
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Store: config.StoreConfig{Driver: config.StoreDriverRedis},
		Redis: config.RedisConfig{Host: mr.Host(), Port: mustPort(t, mr.Port())},
	}
	backend, err := Open(cfg, nil)
	require.NoError(t, err)
	defer backend.Close() //nolint:errcheck
	require.NoError(t, backend.Ping(context.Background()))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(&config.Config{Store: config.StoreConfig{Driver: "mongo"}}, nil)
	assert.Error(t, err)
}

func mustPort(t *testing.T, raw string) int {
	t.Helper()
	port, err := strconv.Atoi(raw)
	require.NoError(t, err)
	return port
}
