package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/student-portal/pkg/errors"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "portal"), mr
}

func TestRedisStoreWriteThenFetch(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteField(ctx, CollectionGroups, "g2", "name", "Robotics"))
	require.NoError(t, s.WriteField(ctx, CollectionGroups, "g1", "name", "Chess Club"))
	require.NoError(t, s.WriteField(ctx, CollectionGroups, "g1", "members", 12))
	require.NoError(t, s.WriteField(ctx, CollectionGroups, "g2", "members", 4))

	records, err := s.FetchAll(ctx, CollectionGroups)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "g2", records[0].ID)
	assert.Equal(t, "g1", records[1].ID)
	assert.Equal(t, "Chess Club", records[1].Fields["name"])
	assert.Equal(t, float64(12), records[1].Fields["members"])
}

func TestRedisStoreFetchEmptyCollection(t *testing.T) {
	s, _ := newRedisStore(t)
	records, err := s.FetchAll(context.Background(), CollectionEvents)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRedisStoreMalformedField(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.Push("portal:groups:ids", "g1")
	mr.HSet("portal:groups:doc:g1", "name", "{bad")

	_, err := s.FetchAll(context.Background(), CollectionGroups)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrStoreMalformed))
}

func TestRedisStoreUnavailable(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.Close()

	_, err := s.FetchAll(context.Background(), CollectionGroups)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrStoreUnavailable))

	err = s.WriteField(context.Background(), CollectionGroups, "g1", "name", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrStoreUnavailable))
}
