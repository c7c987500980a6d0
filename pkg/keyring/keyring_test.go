package keyring

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestFileKeyring(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "keyring.json")

	m, err := NewManager(BackendFile, path, "master")
	require.NoError(t, err)
	assert.Equal(t, BackendFile, m.Backend())

	_, err = m.ConnectionPassword("crm")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.SetConnectionPassword("crm", "s3cret"))
	require.NoError(t, m.SetConnectionPassword("billing", "other"))

	pw, err := m.ConnectionPassword("crm")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)

	// A second manager over the same file sees the secret.
	again, err := NewManager(BackendFile, path, "master")
	require.NoError(t, err)
	pw, err = again.ConnectionPassword("billing")
	require.NoError(t, err)
	assert.Equal(t, "other", pw)

	wrong, err := NewManager(BackendFile, path, "guess")
	require.NoError(t, err)
	_, err = wrong.ConnectionPassword("crm")
	assert.Error(t, err)

	require.NoError(t, m.DeleteConnectionPassword("crm"))
	require.NoError(t, m.DeleteConnectionPassword("crm"))
	_, err = m.ConnectionPassword("crm")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileKeyringNeedsMasterPassword(t *testing.T) {
	_, err := NewManager(BackendFile, filepath.Join(t.TempDir(), "k.json"), "")
	assert.Error(t, err)
}

func TestSystemKeyring(t *testing.T) {
	keyring.MockInit()

	m, err := NewManager(BackendSystem, "", "")
	require.NoError(t, err)

	_, err = m.ConnectionPassword("crm")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.SetConnectionPassword("crm", "s3cret"))
	pw, err := m.ConnectionPassword("crm")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)

	require.NoError(t, m.DeleteConnectionPassword("crm"))
	require.NoError(t, m.DeleteConnectionPassword("crm"))
}

func TestAutoPrefersSystemKeyring(t *testing.T) {
	keyring.MockInit()

	m, err := NewManager(BackendAuto, "", "")
	require.NoError(t, err)
	assert.Equal(t, BackendSystem, m.Backend())
}

func TestUnknownBackend(t *testing.T) {
	_, err := NewManager("vault", "", "")
	assert.Error(t, err)
}
