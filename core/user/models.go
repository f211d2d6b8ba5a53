package user

import (
	"encoding/json"
	"time"
)

// Per-user cache kinds, stored under "{username}_{kind}".
const (
	CacheNotifications        = "notifications"
	CacheContentData          = "contentData"
	CacheLastFetchDate        = "lastFetchDate"
	CachePayFeesTermsAccepted = "payFeesTermsAccepted"
	CachePreferences          = "preferences"
	CacheCachedData           = "cachedData"
)

var userDataKinds = []string{
	CacheNotifications,
	CacheContentData,
	CacheLastFetchDate,
	CachePayFeesTermsAccepted,
	CachePreferences,
	CacheCachedData,
}

// Credential is one child's login as kept in the vault.
type Credential struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	IsDefault bool   `json:"isDefault"`
	FullName  string `json:"fullName"`
}

// Pointer returns the CurrentUserPointer form of c: the password never leaves the vault.
func (c Credential) Pointer() Credential {
	c.Password = pointerPassword
	return c
}

// HasPassword reports whether c carries a usable password (pointers do not).
func (c Credential) HasPassword() bool {
	return c.Password != "" && c.Password != pointerPassword
}

// LogPerson identifies the credential's owner in log entries.
func (c Credential) LogPerson() (id, username, email string) {
	return c.Username, c.Username, ""
}

// CacheEntry is what is stored under a per-user cache key.
type CacheEntry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Username  string          `json:"username"`
}

// Decode unmarshals the cached payload into v.
func (e CacheEntry) Decode(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}
