package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolconnect/core/user"
)

func init() {
	kdfMemory = 1024 // keep tests fast
}

func newTestVault(t *testing.T, passphrase string) *FileVault {
	t.Helper()
	v, err := NewFileVault(filepath.Join(t.TempDir(), "data", "users.vault"), passphrase)
	require.NoError(t, err)
	return v
}

func TestNewFileVault(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		passphrase string
		wantErr    bool
	}{
		{"ok", "users.vault", "s3cret", false},
		{"no passphrase", "users.vault", "", true},
		{"no path", "", "s3cret", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFileVault(tt.path, tt.passphrase)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewFileVault() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFileVault(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, "s3cret")

	_, err := v.Load(ctx)
	assert.Equal(t, user.ErrVaultEmpty, err)

	record := []byte(`[{"username":"cv123","password":"pass1","isDefault":true}]`)
	require.NoError(t, v.Save(ctx, record))

	got, err := v.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, record, got)

	blob, err := os.ReadFile(v.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "pass1", "the record is encrypted at rest")

	info, err := os.Stat(v.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(fileMode), info.Mode().Perm())

	// saving again re-salts
	require.NoError(t, v.Save(ctx, record))
	blob2, err := os.ReadFile(v.Path())
	require.NoError(t, err)
	assert.NotEqual(t, blob, blob2)

	entries, err := os.ReadDir(filepath.Dir(v.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file is left behind")

	require.NoError(t, v.Reset(ctx))
	_, err = v.Load(ctx)
	assert.Equal(t, user.ErrVaultEmpty, err)
	require.NoError(t, v.Reset(ctx), "resetting twice is fine")
}

func TestFileVault_Load_errors(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, "s3cret")
	require.NoError(t, v.Save(ctx, []byte("[]")))

	t.Run("wrong passphrase", func(t *testing.T) {
		other, err := NewFileVault(v.Path(), "guess")
		require.NoError(t, err)
		_, err = other.Load(ctx)
		assert.Equal(t, ErrDecrypt, err)
	})

	t.Run("tampered", func(t *testing.T) {
		blob, err := os.ReadFile(v.Path())
		require.NoError(t, err)
		blob[len(blob)-1] ^= 0xff
		require.NoError(t, os.WriteFile(v.Path(), blob, fileMode))
		_, err = v.Load(ctx)
		assert.Equal(t, ErrDecrypt, err)
	})

	t.Run("not a vault", func(t *testing.T) {
		require.NoError(t, os.WriteFile(v.Path(), []byte("hello"), fileMode))
		_, err := v.Load(ctx)
		assert.Equal(t, ErrCorrupted, err)
	})
}

func TestFileVault_withStore(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, "s3cret")
	store := user.NewStore(v, nil, nil)

	_, err := store.StoreCredential(ctx, "cv123", "pass1", true, "Dhwani")
	require.NoError(t, err)

	reopened, err := NewFileVault(v.Path(), "s3cret")
	require.NoError(t, err)
	creds, err := user.NewStore(reopened, nil, nil).Credentials(ctx)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "pass1", creds[0].Password)
}
