package user

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/core"
)

const (
	currentUserKey  = "currentUser"
	deviceKeyKey    = "deviceKey"
	pointerPassword = "NA"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("credential")
	ErrVaultEmpty  = errors.New("vault is empty")
	ErrKeyNotFound = errors.New("key not found")

	nowFunc = time.Now // mockable
)

type (
	// Vault holds one secret record: the whole credential set.
	Vault interface {
		// Load returns ErrVaultEmpty when nothing was saved yet.
		Load(ctx context.Context) ([]byte, error)
		Save(ctx context.Context, record []byte) error
		Reset(ctx context.Context) error
	}

	// KVStore is the general key/value store (pointer, generic app keys, per-user caches).
	KVStore interface {
		// Get returns ErrKeyNotFound for missing keys.
		Get(ctx context.Context, key string) ([]byte, error)
		Set(ctx context.Context, key string, value []byte) error
		Delete(ctx context.Context, key string) error
		Keys(ctx context.Context) ([]string, error)
		Clear(ctx context.Context) error
	}

	// Store is the CredentialStore: every credential lives in one vault record,
	// rewritten wholesale under mu.
	Store struct {
		vault  Vault
		kv     KVStore
		logger core.Logger
		mu     sync.Mutex
	}
)

func NewStore(vault Vault, kv KVStore, logger core.Logger) *Store {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Store{vault: vault, kv: kv, logger: logger}
}

// NormalizeUsername trims and lowers a username; the result is the credential's unique key.
func NormalizeUsername(username string) string {
	return core.CleanString(username, true /* lower */)
}

func cacheKey(username, kind string) string {
	return NormalizeUsername(username) + "_" + kind
}

func (s *Store) loadCredentials(ctx context.Context) ([]Credential, error) {
	record, err := s.vault.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrVaultEmpty) {
			return nil, nil
		}
		s.logger.Error("loading credentials", err)
		return nil, core.NewStorageError("loading credentials", err)
	}
	if len(record) == 0 {
		return nil, nil
	}
	var creds []Credential
	if err := json.Unmarshal(record, &creds); err != nil {
		s.logger.Error("decoding credentials", err)
		return nil, core.NewStorageError("decoding credentials", err)
	}
	return creds, nil
}

func (s *Store) saveCredentials(ctx context.Context, creds []Credential) error {
	if len(creds) == 0 {
		if err := s.vault.Reset(ctx); err != nil {
			s.logger.Error("resetting vault", err)
			return core.NewStorageError("resetting vault", err)
		}
		return nil
	}
	record, err := json.Marshal(creds)
	if err != nil {
		return core.NewStorageError("encoding credentials", err)
	}
	if err := s.vault.Save(ctx, record); err != nil {
		s.logger.Error("saving credentials", err)
		return core.NewStorageError("saving credentials", err)
	}
	return nil
}

// StoreCredential creates or updates the credential of `username`.
// A failed write leaves the previous vault record in place.
func (s *Store) StoreCredential(ctx context.Context, username, password string, isDefault bool, fullName string) (Credential, error) {
	cred := Credential{
		Username:  NormalizeUsername(username),
		Password:  password,
		IsDefault: isDefault,
		FullName:  core.CleanString(fullName),
	}
	if cred.Username == "" || password == "" {
		return Credential{}, core.NewValidationError(errors.New("username and password are required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.loadCredentials(ctx)
	if err != nil {
		return Credential{}, err
	}
	var found bool
	for i := range creds {
		if creds[i].Username == cred.Username {
			creds[i] = cred
			found = true
			break
		}
	}
	if !found {
		creds = append(creds, cred)
	}
	if err := s.saveCredentials(ctx, creds); err != nil {
		return Credential{}, err
	}
	s.logger.Debug("credential stored", cred.Pointer())
	return cred, nil
}

// Credentials returns every stored credential, in insertion order.
func (s *Store) Credentials(ctx context.Context) ([]Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadCredentials(ctx)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	creds, err := s.Credentials(ctx)
	return len(creds), err
}

// Credential finds a stored credential by username (ErrNotFound if absent).
func (s *Store) Credential(ctx context.Context, username string) (Credential, error) {
	creds, err := s.Credentials(ctx)
	if err != nil {
		return Credential{}, err
	}
	uname := NormalizeUsername(username)
	for _, cred := range creds {
		if cred.Username == uname {
			return cred, nil
		}
	}
	return Credential{}, ErrNotFound
}

func (s *Store) pointer(ctx context.Context) (Credential, bool) {
	raw, err := s.kv.Get(ctx, currentUserKey)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.logger.Warn("reading current user pointer", err)
		}
		return Credential{}, false
	}
	var ptr Credential
	if err := json.Unmarshal(raw, &ptr); err != nil || ptr.Username == "" {
		s.logger.Warn("decoding current user pointer", err)
		return Credential{}, false
	}
	return ptr, true
}

// CurrentUser resolves the current user pointer against the vault.
// Without a (resolvable) pointer it falls back to the first stored credential and points at it.
// ErrNotFound is returned when no credential is stored at all.
func (s *Store) CurrentUser(ctx context.Context) (Credential, error) {
	creds, err := s.Credentials(ctx)
	if err != nil {
		return Credential{}, err
	}
	if len(creds) == 0 {
		return Credential{}, ErrNotFound
	}
	if ptr, ok := s.pointer(ctx); ok {
		for _, cred := range creds {
			if cred.Username == ptr.Username {
				return cred, nil
			}
		}
		s.logger.Info("current user not stored anymore; falling back to the first credential", ptr)
	}
	cur := creds[0]
	if err := s.SetCurrentUser(ctx, cur); err != nil {
		// the fallback is still usable for this run
		s.logger.Warn("persisting fallback current user", err, cur.Pointer())
	}
	return cur, nil
}

// SetCurrentUser points the current user at cred. The password is never written outside the vault.
func (s *Store) SetCurrentUser(ctx context.Context, cred Credential) error {
	cred.Username = NormalizeUsername(cred.Username)
	raw, err := json.Marshal(cred.Pointer())
	if err != nil {
		return core.NewStorageError("encoding current user pointer", err)
	}
	if err := s.kv.Set(ctx, currentUserKey, raw); err != nil {
		s.logger.Error("saving current user pointer", err, cred.Pointer())
		return core.NewStorageError("saving current user pointer", err)
	}
	return nil
}

func (s *Store) ClearCurrentUser(ctx context.Context) error {
	if err := s.kv.Delete(ctx, currentUserKey); err != nil {
		s.logger.Error("clearing current user pointer", err)
		return core.NewStorageError("clearing current user pointer", err)
	}
	return nil
}

// RemoveCredential forgets `username`. The pointer is cleared if it designated that user
// and the vault record is reset once the set is empty.
func (s *Store) RemoveCredential(ctx context.Context, username string) error {
	uname := NormalizeUsername(username)

	s.mu.Lock()
	creds, err := s.loadCredentials(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	kept := make([]Credential, 0, len(creds))
	for _, cred := range creds {
		if cred.Username != uname {
			kept = append(kept, cred)
		}
	}
	err = s.saveCredentials(ctx, kept)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if ptr, ok := s.pointer(ctx); ok && ptr.Username == uname {
		return s.ClearCurrentUser(ctx)
	}
	return nil
}

// ResetAll forgets every user: the vault and the whole key/value store are cleared.
func (s *Store) ResetAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.vault.Reset(ctx); err != nil {
		s.logger.Error("resetting vault", err)
		return core.NewStorageError("resetting vault", err)
	}
	if err := s.kv.Clear(ctx); err != nil {
		s.logger.Error("clearing key/value store", err)
		return core.NewStorageError("clearing key/value store", err)
	}
	return nil
}

// OtherUsers returns every stored credential except the current one.
func (s *Store) OtherUsers(ctx context.Context) ([]Credential, error) {
	cur, err := s.CurrentUser(ctx)
	if err != nil {
		if err == ErrNotFound {
			return []Credential{}, nil
		}
		return nil, err
	}
	creds, err := s.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	others := make([]Credential, 0, len(creds))
	for _, cred := range creds {
		if cred.Username != cur.Username {
			others = append(others, cred)
		}
	}
	return others, nil
}

// StoreUserCache saves `data` (JSON-encoded) under "{username}_{kind}" with a capture timestamp.
func (s *Store) StoreUserCache(ctx context.Context, username, kind string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrapf(err, "encoding %s cache", kind)
	}
	entry := CacheEntry{
		Data:      payload,
		Timestamp: nowFunc().UTC(),
		Username:  NormalizeUsername(username),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrapf(err, "encoding %s cache entry", kind)
	}
	if err := s.kv.Set(ctx, cacheKey(username, kind), raw); err != nil {
		s.logger.Error("saving user cache", err, map[string]interface{}{"username": entry.Username, "kind": kind})
		return core.NewStorageError("saving user cache", err)
	}
	return nil
}

// UserCache returns the entry cached under "{username}_{kind}".
// found is false (with a nil error) when nothing usable is cached.
func (s *Store) UserCache(ctx context.Context, username, kind string) (entry CacheEntry, found bool, err error) {
	raw, err := s.kv.Get(ctx, cacheKey(username, kind))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return CacheEntry{}, false, nil
		}
		s.logger.Error("reading user cache", err, map[string]interface{}{"username": username, "kind": kind})
		return CacheEntry{}, false, core.NewStorageError("reading user cache", err)
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.logger.Warn("decoding user cache; ignoring it", err, map[string]interface{}{"username": username, "kind": kind})
		return CacheEntry{}, false, nil
	}
	if len(entry.Data) == 0 || string(entry.Data) == "null" {
		return CacheEntry{}, false, nil
	}
	return entry, true, nil
}

func (s *Store) ClearUserCache(ctx context.Context, username, kind string) error {
	if err := s.kv.Delete(ctx, cacheKey(username, kind)); err != nil {
		s.logger.Error("clearing user cache", err, map[string]interface{}{"username": username, "kind": kind})
		return core.NewStorageError("clearing user cache", err)
	}
	return nil
}

// ClearUserData removes the well-known per-user keys of `username`.
func (s *Store) ClearUserData(ctx context.Context, username string) error {
	for _, kind := range userDataKinds {
		if err := s.ClearUserCache(ctx, username, kind); err != nil {
			return err
		}
	}
	return nil
}

// ClearGenericKeys deletes every key that does not belong to a stored user (pointer included).
// The device key is kept.
func (s *Store) ClearGenericKeys(ctx context.Context) error {
	creds, err := s.Credentials(ctx)
	if err != nil {
		return err
	}
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		s.logger.Error("listing keys", err)
		return core.NewStorageError("listing keys", err)
	}

	isUserKey := func(key string) bool {
		for _, cred := range creds {
			if strings.HasPrefix(key, cred.Username+"_") {
				return true
			}
		}
		return false
	}
	for _, key := range keys {
		if key == deviceKeyKey || isUserKey(key) {
			continue
		}
		if err := s.kv.Delete(ctx, key); err != nil {
			s.logger.Error("deleting generic key", err, map[string]interface{}{"key": key})
			return core.NewStorageError("deleting generic key", err)
		}
	}
	return nil
}

// DeviceKey returns the per-install identifier sent with every backend request, creating it once.
func (s *Store) DeviceKey(ctx context.Context) (string, error) {
	raw, err := s.kv.Get(ctx, deviceKeyKey)
	if err == nil && len(raw) > 0 {
		return string(raw), nil
	}
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		s.logger.Error("reading device key", err)
		return "", core.NewStorageError("reading device key", err)
	}
	key := uuid.New().String()
	if err := s.kv.Set(ctx, deviceKeyKey, []byte(key)); err != nil {
		s.logger.Error("saving device key", err)
		return "", core.NewStorageError("saving device key", err)
	}
	return key, nil
}
