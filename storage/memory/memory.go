package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/trezcool/schoolconnect/core/user"
)

type (
	// Vault keeps the credential record in memory.
	Vault struct {
		sync.RWMutex
		record []byte
	}

	// KVStore is a map-backed user.KVStore.
	KVStore struct {
		sync.RWMutex
		table map[string][]byte
	}
)

var (
	_ user.Vault   = (*Vault)(nil) // interface compliance check
	_ user.KVStore = (*KVStore)(nil)
)

func NewVault() *Vault {
	return &Vault{}
}

func (v *Vault) Load(context.Context) ([]byte, error) {
	v.RLock()
	defer v.RUnlock()
	if v.record == nil {
		return nil, user.ErrVaultEmpty
	}
	return copyBytes(v.record), nil
}

func (v *Vault) Save(_ context.Context, record []byte) error {
	v.Lock()
	defer v.Unlock()
	v.record = copyBytes(record)
	return nil
}

func (v *Vault) Reset(context.Context) error {
	v.Lock()
	defer v.Unlock()
	v.record = nil
	return nil
}

func NewKVStore() *KVStore {
	return &KVStore{table: make(map[string][]byte)}
}

func (s *KVStore) Get(_ context.Context, key string) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()
	val, ok := s.table[key]
	if !ok {
		return nil, user.ErrKeyNotFound
	}
	return copyBytes(val), nil
}

func (s *KVStore) Set(_ context.Context, key string, value []byte) error {
	s.Lock()
	defer s.Unlock()
	s.table[key] = copyBytes(value)
	return nil
}

func (s *KVStore) Delete(_ context.Context, key string) error {
	s.Lock()
	defer s.Unlock()
	delete(s.table, key)
	return nil
}

func (s *KVStore) Keys(context.Context) ([]string, error) {
	s.RLock()
	defer s.RUnlock()
	keys := make([]string, 0, len(s.table))
	for key := range s.table {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *KVStore) Clear(context.Context) error {
	s.Lock()
	defer s.Unlock()
	s.table = make(map[string][]byte)
	return nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
