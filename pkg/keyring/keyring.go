// Package keyring stores connection passwords outside the config file, in the
// system keyring or, on headless hosts, in an AES-GCM encrypted file.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zalando/go-keyring"
)

// ServiceName is the keyring service connection passwords are stored under.
const ServiceName = "redb-persistence"

// Backend selects where secrets are kept.
type Backend string

const (
	BackendAuto   Backend = "auto"
	BackendSystem Backend = "system"
	BackendFile   Backend = "file"
)

// ErrNotFound is returned when no secret is stored for a key.
var ErrNotFound = errors.New("secret not found in keyring")

// probeTimeout bounds the system keyring availability check; some desktop
// keyrings block on an unlock prompt.
const probeTimeout = 5 * time.Second

// Store is a secret store keyed by service and user.
type Store interface {
	Get(service, user string) (string, error)
	Set(service, user, secret string) error
	Delete(service, user string) error
}

// Manager reads and writes connection passwords.
type Manager struct {
	store   Store
	backend Backend
}

// NewManager opens the keyring for backend. The file backend needs a master
// password; auto uses the system keyring when it answers within a few
// seconds and falls back to the file otherwise.
func NewManager(backend Backend, path, masterPassword string) (*Manager, error) {
	switch backend {
	case BackendSystem:
		return &Manager{store: systemStore{}, backend: BackendSystem}, nil
	case BackendFile:
		fk, err := NewFileKeyring(path, masterPassword)
		if err != nil {
			return nil, err
		}
		return &Manager{store: fk, backend: BackendFile}, nil
	case BackendAuto, "":
		if systemAvailable() {
			return &Manager{store: systemStore{}, backend: BackendSystem}, nil
		}
		return NewManager(BackendFile, path, masterPassword)
	default:
		return nil, fmt.Errorf("unknown keyring backend %q", backend)
	}
}

// Backend returns the backend in use.
func (m *Manager) Backend() Backend { return m.backend }

// ConnectionPassword returns the password stored for connection.
func (m *Manager) ConnectionPassword(connection string) (string, error) {
	pw, err := m.store.Get(ServiceName, connectionKey(connection))
	if err != nil {
		return "", fmt.Errorf("password of connection %s: %w", connection, err)
	}
	return pw, nil
}

// SetConnectionPassword stores the password of connection.
func (m *Manager) SetConnectionPassword(connection, password string) error {
	return m.store.Set(ServiceName, connectionKey(connection), password)
}

// DeleteConnectionPassword removes the password of connection.
func (m *Manager) DeleteConnectionPassword(connection string) error {
	return m.store.Delete(ServiceName, connectionKey(connection))
}

func connectionKey(connection string) string {
	return "connection/" + connection
}

func systemAvailable() bool {
	const testService, testKey = ServiceName + "-probe", "probe"

	done := make(chan error, 1)
	go func() {
		err := keyring.Set(testService, testKey, "probe")
		if err == nil {
			_ = keyring.Delete(testService, testKey)
		}
		done <- err
	}()

	select {
	case err := <-done:
		return err == nil
	case <-time.After(probeTimeout):
		return false
	}
}

type systemStore struct{}

func (systemStore) Get(service, user string) (string, error) {
	secret, err := keyring.Get(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return secret, err
}

func (systemStore) Set(service, user, secret string) error {
	return keyring.Set(service, user, secret)
}

func (systemStore) Delete(service, user string) error {
	err := keyring.Delete(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// FileKeyring keeps secrets in a JSON file, each encrypted with a key derived
// from the master password.
type FileKeyring struct {
	mu        sync.Mutex
	path      string
	masterKey []byte
}

type fileEntry struct {
	Service string `json:"service"`
	User    string `json:"user"`
	Data    string `json:"data"` // encrypted data
}

// NewFileKeyring creates a file keyring at path, or at DefaultPath when path
// is empty.
func NewFileKeyring(path, masterPassword string) (*FileKeyring, error) {
	if masterPassword == "" {
		return nil, errors.New("file keyring needs a master password")
	}
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create keyring directory: %w", err)
	}

	hash := sha256.Sum256([]byte(masterPassword))
	return &FileKeyring{path: path, masterKey: hash[:]}, nil
}

// Get returns the secret stored for service and user.
func (fk *FileKeyring) Get(service, user string) (string, error) {
	fk.mu.Lock()
	defer fk.mu.Unlock()

	entries, err := fk.load()
	if err != nil {
		return "", err
	}
	entry, ok := entries[entryKey(service, user)]
	if !ok {
		return "", ErrNotFound
	}
	return fk.decrypt(entry.Data)
}

// Set stores secret for service and user.
func (fk *FileKeyring) Set(service, user, secret string) error {
	fk.mu.Lock()
	defer fk.mu.Unlock()

	entries, err := fk.load()
	if err != nil {
		return err
	}
	data, err := fk.encrypt(secret)
	if err != nil {
		return err
	}
	entries[entryKey(service, user)] = fileEntry{Service: service, User: user, Data: data}
	return fk.save(entries)
}

// Delete removes the secret for service and user. Deleting a missing secret
// is not an error.
func (fk *FileKeyring) Delete(service, user string) error {
	fk.mu.Lock()
	defer fk.mu.Unlock()

	entries, err := fk.load()
	if err != nil {
		return err
	}
	key := entryKey(service, user)
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return fk.save(entries)
}

func entryKey(service, user string) string {
	return service + ":" + user
}

func (fk *FileKeyring) load() (map[string]fileEntry, error) {
	entries := make(map[string]fileEntry)
	data, err := os.ReadFile(fk.path)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring: %w", err)
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse keyring %s: %w", fk.path, err)
	}
	return entries, nil
}

func (fk *FileKeyring) save(entries map[string]fileEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(fk.path, data, 0o600)
}

// encrypt seals plaintext with AES-GCM and prefixes the nonce.
func (fk *FileKeyring) encrypt(plaintext string) (string, error) {
	gcm, err := fk.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (fk *FileKeyring) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	gcm, err := fk.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret, wrong master password? %w", err)
	}
	return string(plaintext), nil
}

func (fk *FileKeyring) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(fk.masterKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// DefaultPath returns the default keyring file path
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "redb-persistence-keyring.json")
	}
	return filepath.Join(homeDir, ".local", "share", "redb", "persistence-keyring.json")
}
