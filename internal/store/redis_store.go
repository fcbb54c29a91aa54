package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Key layout (prefix "portal"):
//
//	portal:{collection}:ids        list, insertion order
//	portal:{collection}:idset      set, membership check for ids
//	portal:{collection}:doc:{id}   hash, field -> JSON encoded value
var writeFieldScript = redis.NewScript(`
if redis.call('SADD', KEYS[1], ARGV[1]) == 1 then
	redis.call('RPUSH', KEYS[2], ARGV[1])
end
redis.call('HSET', KEYS[3], ARGV[2], ARGV[3])
return 1
`)

// RedisStore keeps each document as a Redis hash.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ RemoteStore = (*RedisStore)(nil)

// NewRedisStore builds a store on an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "portal"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) idsKey(collection string) string {
	return fmt.Sprintf("%s:%s:ids", s.prefix, collection)
}

func (s *RedisStore) idSetKey(collection string) string {
	return fmt.Sprintf("%s:%s:idset", s.prefix, collection)
}

func (s *RedisStore) docKey(collection, id string) string {
	return fmt.Sprintf("%s:%s:doc:%s", s.prefix, collection, id)
}

// FetchAll reads the id list then every document hash in one pipeline.
func (s *RedisStore) FetchAll(ctx context.Context, collection string) ([]Record, error) {
	ids, err := s.client.LRange(ctx, s.idsKey(collection), 0, -1).Result()
	if err != nil {
		return nil, unavailable(err, "fetch", collection)
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.docKey(collection, id))
		}
		return nil
	})
	if err != nil {
		return nil, unavailable(err, "fetch", collection)
	}

	records := make([]Record, 0, len(ids))
	for i, id := range ids {
		raw := cmds[i].Val()
		if len(raw) == 0 {
			continue
		}
		fields := make(map[string]interface{}, len(raw))
		for name, encoded := range raw {
			var value interface{}
			if err := json.Unmarshal([]byte(encoded), &value); err != nil {
				return nil, malformed(fmt.Errorf("field %s: %w", name, err), collection, id)
			}
			fields[name] = value
		}
		records = append(records, Record{ID: id, Fields: fields})
	}
	return records, nil
}

// WriteField sets one hash field and registers the id atomically.
func (s *RedisStore) WriteField(ctx context.Context, collection, id, field string, value interface{}) error {
	if err := validateKey(collection, id, field); err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s.%s: %w", collection, id, field, err)
	}
	keys := []string{s.idSetKey(collection), s.idsKey(collection), s.docKey(collection, id)}
	if err := writeFieldScript.Run(ctx, s.client, keys, id, field, string(encoded)).Err(); err != nil {
		return unavailable(err, "write", collection)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
