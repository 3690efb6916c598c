package credentials

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

var _ Store = (*FileStore)(nil)

const (
	scryptN       = 1 << 15
	scryptR       = 8
	scryptP       = 1
	scryptSaltLen = 16
)

// FileStore persists credentials as a JSON map in a single file, written
// atomically via a temp file and rename. When constructed with a
// passphrase, the file body is encrypted at rest with ChaCha20-Poly1305
// under a scrypt-derived key; the salt and nonce are stored alongside the
// ciphertext.
type FileStore struct {
	path       string
	passphrase []byte
	mu         sync.Mutex
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithPassphrase enables at-rest encryption of the credential file.
func WithPassphrase(passphrase string) FileStoreOption {
	return func(fs *FileStore) {
		if passphrase != "" {
			fs.passphrase = []byte(passphrase)
		}
	}
}

// NewFileStore creates a file-backed credential store at path.
func NewFileStore(path string, options ...FileStoreOption) *FileStore {
	fs := &FileStore{path: path}
	for _, opt := range options {
		opt(fs)
	}
	return fs
}

func (fs *FileStore) Set(ctx context.Context, key, value string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := fs.load()
	if err != nil {
		return err
	}
	entries[key] = value
	return fs.save(entries)
}

func (fs *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := fs.load()
	if err != nil {
		return "", false, err
	}
	value, ok := entries[key]
	return value, ok, nil
}

func (fs *FileStore) Clear(ctx context.Context, keys ...string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := fs.load()
	if err != nil {
		return err
	}
	for _, key := range keys {
		delete(entries, key)
	}
	return fs.save(entries)
}

func (fs *FileStore) load() (map[string]string, error) {
	raw, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "[FileStore.load] %v", err)
	}

	if fs.passphrase != nil {
		raw, err = fs.decrypt(raw)
		if err != nil {
			return nil, errors.Wrap(err, "[FileStore.load] decrypt")
		}
	}

	entries := map[string]string{}
	if err := json.Unmarshal(raw, &entries); err != nil {
		// Corrupt file: start over rather than locking the user out.
		return map[string]string{}, nil
	}
	return entries, nil
}

// save writes the whole map to a temp file in the same directory and
// renames it over the target, so readers only ever observe a complete
// file.
func (fs *FileStore) save(entries map[string]string) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, "[FileStore.save] marshal")
	}

	if fs.passphrase != nil {
		raw, err = fs.encrypt(raw)
		if err != nil {
			return errors.Wrap(err, "[FileStore.save] encrypt")
		}
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(ErrUnavailable, "[FileStore.save] mkdir: %v", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return errors.Wrapf(ErrUnavailable, "[FileStore.save] temp file: %v", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(ErrUnavailable, "[FileStore.save] write: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(ErrUnavailable, "[FileStore.save] close: %v", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(ErrUnavailable, "[FileStore.save] chmod: %v", err)
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(ErrUnavailable, "[FileStore.save] rename: %v", err)
	}
	return nil
}

func (fs *FileStore) encrypt(plaintext []byte) ([]byte, error) {
	salt := make([]byte, scryptSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "rand salt")
	}
	aead, err := fs.aead(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "rand nonce")
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	out := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

func (fs *FileStore) decrypt(raw []byte) ([]byte, error) {
	if len(raw) < scryptSaltLen+chacha20poly1305.NonceSize {
		return nil, errors.New("ciphertext too short")
	}
	salt := raw[:scryptSaltLen]
	aead, err := fs.aead(salt)
	if err != nil {
		return nil, err
	}
	nonce := raw[scryptSaltLen : scryptSaltLen+aead.NonceSize()]
	sealed := raw[scryptSaltLen+aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	return plaintext, nil
}

func (fs *FileStore) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(fs.passphrase, salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
	if err != nil {
		return nil, errors.Wrap(err, "scrypt")
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.Wrap(err, "chacha20poly1305")
	}
	return aead, nil
}
