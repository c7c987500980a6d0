package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-persistence/pkg/config"
	"github.com/redbco/redb-persistence/pkg/keyring"
	"github.com/redbco/redb-persistence/pkg/logger"
)

const mapping = `<?xml version="1.0"?>
<entity-mappings xmlns="http://xmlns.jcp.org/xml/ns/persistence/orm" version="2.1">
  <entity class="com.example.Customer">
    <table name="customer"/>
    <attributes>
      <id name="id"><generated-value strategy="IDENTITY"/></id>
      <basic name="name"/>
    </attributes>
  </entity>
</entity-mappings>`

func TestNew(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orm.xml")
	require.NoError(t, os.WriteFile(path, []byte(mapping), 0o600))

	cfg, err := config.Parse([]byte("mapping_file: " + path + "\nscheme: store\nmetrics:\n  enabled: true\nconnections:\n  crm:\n    type: sqlite\n    path: " + dir + "\n"))
	require.NoError(t, err)

	s, err := New(cfg, "test", WithLogger(logger.NewNop()))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "store", s.Handler.Scheme())
	assert.NotNil(t, s.Metrics)
	assert.Equal(t, []string{"crm"}, s.Connections.Names())
}

func TestNewWithoutMetrics(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	s, err := New(cfg, "test")
	require.NoError(t, err)
	defer s.Close()

	assert.Nil(t, s.Metrics)
	assert.Zero(t, s.Connections.Len())
}

func TestNewBadMappingFile(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.MappingFile = filepath.Join(t.TempDir(), "missing.xml")

	_, err = New(cfg, "test", WithLogger(logger.NewNop()))
	assert.Error(t, err)
}

func TestNewBadLogLevel(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Logging.Level = "loud"

	_, err = New(cfg, "test")
	assert.Error(t, err)
}

func TestNewReadsKeyringPasswords(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Parse([]byte("connections:\n  crm:\n    type: sqlite\n    path: " + dir + "\n    password_keyring: true\n"))
	require.NoError(t, err)

	m, err := keyring.NewManager(keyring.BackendFile, filepath.Join(dir, "keyring.json"), "master")
	require.NoError(t, err)

	_, err = New(cfg, "test", WithLogger(logger.NewNop()), WithKeyring(m))
	assert.ErrorIs(t, err, keyring.ErrNotFound)

	require.NoError(t, m.SetConnectionPassword("crm", "s3cret"))
	s, err := New(cfg, "test", WithLogger(logger.NewNop()), WithKeyring(m))
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 1, s.Connections.Len())
}
