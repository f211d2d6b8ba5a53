package redisrepos

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/schoolconnect/core"
	"github.com/trezcool/schoolconnect/core/user"
)

const scanCount = 200

// KVStore is a user.KVStore keeping every key under a prefix, so that several installs
// (or apps) can share one redis database.
type KVStore struct {
	client *redis.Client
	prefix string
}

var _ user.KVStore = (*KVStore)(nil) // interface compliance check

// NewClient connects to conf.RedisAddr and pings it.
func NewClient(ctx context.Context, conf core.StorageConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

func NewKVStore(client *redis.Client, prefix string) *KVStore {
	return &KVStore{client: client, prefix: prefix}
}

func (s *KVStore) key(k string) string {
	return s.prefix + k
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, user.ErrKeyNotFound
		}
		return nil, errors.Wrapf(err, "reading key %q", key)
	}
	return val, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return errors.Wrapf(err, "writing key %q", key)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return errors.Wrapf(err, "deleting key %q", key)
	}
	return nil
}

// Keys lists the keys under the prefix, with the prefix stripped.
func (s *KVStore) Keys(ctx context.Context) ([]string, error) {
	raw, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, strings.TrimPrefix(k, s.prefix))
	}
	return keys, nil
}

// Clear deletes the keys under the prefix only.
func (s *KVStore) Clear(ctx context.Context) error {
	keys, err := s.scan(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "clearing keys")
	}
	return nil
}

func (s *KVStore) scan(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	pattern := escapeGlob(s.prefix) + "*"
	for {
		page, next, err := s.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return nil, errors.Wrap(err, "scanning keys")
		}
		keys = append(keys, page...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return dedupeSorted(keys), nil
}

// escapeGlob quotes the redis glob metacharacters of s.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// dedupeSorted sorts keys and drops repeats (SCAN may return a key twice).
func dedupeSorted(keys []string) []string {
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if n := len(out); n > 0 && out[n-1] == k {
			continue
		}
		out = append(out, k)
	}
	return out
}
