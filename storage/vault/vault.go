package vault

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/trezcool/schoolconnect/core/user"
)

const (
	saltSize = 16
	keySize  = chacha20poly1305.KeySize
	fileMode = 0o600
)

var (
	magic = []byte("SCV1")

	ErrNoPassphrase = errors.New("vault passphrase is required")
	ErrCorrupted    = errors.New("vault file is corrupted")
	ErrDecrypt      = errors.New("vault cannot be decrypted (wrong passphrase?)")

	// argon2id cost
	kdfTime    uint32 = 1         // mockable
	kdfMemory  uint32 = 64 * 1024 // mockable
	kdfThreads uint8  = 4
)

// FileVault is a user.Vault keeping the credential record in one encrypted file:
// magic | salt | nonce | ciphertext, sealed with XChaCha20-Poly1305 under an argon2id key.
type FileVault struct {
	mu         sync.Mutex
	path       string
	passphrase []byte
}

var _ user.Vault = (*FileVault)(nil) // interface compliance check

func NewFileVault(path, passphrase string) (*FileVault, error) {
	if passphrase == "" {
		return nil, ErrNoPassphrase
	}
	if path == "" {
		return nil, errors.New("vault path is required")
	}
	return &FileVault{path: path, passphrase: []byte(passphrase)}, nil
}

func (v *FileVault) Path() string {
	return v.path
}

func (v *FileVault) Load(context.Context) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	blob, err := os.ReadFile(v.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, user.ErrVaultEmpty
		}
		return nil, errors.Wrap(err, "reading vault file")
	}
	return v.open(blob)
}

func (v *FileVault) Save(_ context.Context, record []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	blob, err := v.seal(record)
	if err != nil {
		return err
	}
	return writeAtomic(v.path, blob)
}

func (v *FileVault) Reset(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := os.Remove(v.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing vault file")
	}
	return nil
}

func (v *FileVault) seal(record []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, errors.Wrap(err, "generating vault salt")
	}
	aead, err := chacha20poly1305.NewX(v.key(salt))
	if err != nil {
		return nil, errors.Wrap(err, "creating vault cipher")
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "generating vault nonce")
	}

	header := make([]byte, 0, len(magic)+saltSize+len(nonce))
	header = append(header, magic...)
	header = append(header, salt...)
	header = append(header, nonce...)
	// the header is authenticated along with the record
	return aead.Seal(header, nonce, record, header), nil
}

func (v *FileVault) open(blob []byte) ([]byte, error) {
	headerSize := len(magic) + saltSize + chacha20poly1305.NonceSizeX
	if len(blob) < headerSize+chacha20poly1305.Overhead || !bytes.HasPrefix(blob, magic) {
		return nil, ErrCorrupted
	}
	salt := blob[len(magic) : len(magic)+saltSize]
	nonce := blob[len(magic)+saltSize : headerSize]

	aead, err := chacha20poly1305.NewX(v.key(salt))
	if err != nil {
		return nil, errors.Wrap(err, "creating vault cipher")
	}
	record, err := aead.Open(nil, nonce, blob[headerSize:], blob[:headerSize])
	if err != nil {
		return nil, ErrDecrypt
	}
	return record, nil
}

func (v *FileVault) key(salt []byte) []byte {
	return argon2.IDKey(v.passphrase, salt, kdfTime, kdfMemory, kdfThreads, keySize)
}

// writeAtomic replaces `path` with `data` through a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "creating vault directory")
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp vault file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return errors.Wrap(err, "setting vault file mode")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temp vault file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "syncing temp vault file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp vault file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "replacing vault file")
	}
	return nil
}
