package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "text", cfg.ExportFormat)
	assert.Equal(t, uint32(0), cfg.PageSize)
	assert.Empty(t, cfg.KeyringPath)
	assert.False(t, cfg.Verbose)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ibd-tool.yaml")
	content := []byte("keyring_path: /var/lib/mysql-keyring/keyring\npage_size: 8192\nexport_format: json\nverbose: true\n")
	require.NoError(t, os.WriteFile(path, content, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/mysql-keyring/keyring", cfg.KeyringPath)
	assert.Equal(t, uint32(8192), cfg.PageSize)
	assert.Equal(t, "json", cfg.ExportFormat)
	assert.True(t, cfg.Verbose)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.ExportFormat)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("verbose: true\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "text", cfg.ExportFormat)
}

func TestLoad_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keyring_path: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
