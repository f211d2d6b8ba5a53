package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/core/user"
)

var nowFunc = time.Now // mockable

type (
	kvEntry struct {
		Key       string    `db:"entry_key"`
		Value     string    `db:"entry_value"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	// KVStore is a user.KVStore over the kv_entries table (sqlite3 or postgres).
	KVStore struct {
		db *sqlx.DB
	}
)

var _ user.KVStore = (*KVStore)(nil) // interface compliance check

func NewKVStore(db *sqlx.DB) *KVStore {
	return &KVStore{db: db}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var val string
	q := s.db.Rebind(`SELECT entry_value FROM kv_entries WHERE entry_key = ?`)
	if err := s.db.GetContext(ctx, &val, q, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrKeyNotFound
		}
		return nil, errors.Wrapf(err, "reading key %q", key)
	}
	return []byte(val), nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	entry := kvEntry{Key: key, Value: string(value), UpdatedAt: nowFunc().UTC()}
	q := s.db.Rebind(`INSERT INTO kv_entries (entry_key, entry_value, updated_at) VALUES (?, ?, ?)
ON CONFLICT (entry_key) DO UPDATE SET entry_value = excluded.entry_value, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, q, entry.Key, entry.Value, entry.UpdatedAt); err != nil {
		return errors.Wrapf(err, "writing key %q", key)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	q := s.db.Rebind(`DELETE FROM kv_entries WHERE entry_key = ?`)
	if _, err := s.db.ExecContext(ctx, q, key); err != nil {
		return errors.Wrapf(err, "deleting key %q", key)
	}
	return nil
}

func (s *KVStore) Keys(ctx context.Context) ([]string, error) {
	keys := make([]string, 0)
	if err := s.db.SelectContext(ctx, &keys, `SELECT entry_key FROM kv_entries ORDER BY entry_key`); err != nil {
		return nil, errors.Wrap(err, "listing keys")
	}
	return keys, nil
}

func (s *KVStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries`); err != nil {
		return errors.Wrap(err, "clearing keys")
	}
	return nil
}
