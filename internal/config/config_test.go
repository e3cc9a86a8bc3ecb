package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		name     string
		flag     string
		envValue string
		want     string
	}{
		{"flag takes precedence", "/path/from/flag", "/path/from/env", "/path/from/flag"},
		{"env when no flag", "", "/path/from/env", "/path/from/env"},
		{"empty when neither", "", "", ""},
		{"whitespace flag", "  ", "/path/from/env", "/path/from/env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NODNS_CONFIG", tt.envValue)
			got := ResolveConfigPath(tt.flag)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8.8.8.8", cfg.RemoteHost)
	assert.Equal(t, 0, cfg.ClientPort)
	assert.Equal(t, uint8(MaskDefault), cfg.LogMask)
	assert.Equal(t, "", cfg.HostsPath)
	assert.Equal(t, "", cfg.LogPath)
}

func TestLoadFromFile(t *testing.T) {
	content := `
remote_host: "1.1.1.1"
client_port: 5300
log_mask: 15
hosts_path: "/etc/nodns/hosts"
log_path: "/var/log/nodns.log"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test-config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "1.1.1.1", cfg.RemoteHost)
	assert.Equal(t, 5300, cfg.ClientPort)
	assert.Equal(t, uint8(15), cfg.LogMask)
	assert.Equal(t, "/etc/nodns/hosts", cfg.HostsPath)
	assert.Equal(t, "/var/log/nodns.log", cfg.LogPath)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path/to/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("remote_host: [invalid"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeInvalidRemoteHost(t *testing.T) {
	content := `
remote_host: "not-an-ip"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeRejectsIPv6RemoteHost(t *testing.T) {
	content := `
remote_host: "::1"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeInvalidClientPort(t *testing.T) {
	content := `
client_port: 80
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeInvalidLogMask(t *testing.T) {
	content := `
log_mask: 255
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NODNS_REMOTE_HOST", "9.9.9.9")
	t.Setenv("NODNS_CLIENT_PORT", "6000")
	t.Setenv("NODNS_LOG_MASK", "4")
	t.Setenv("NODNS_HOSTS_PATH", "/custom/hosts")
	t.Setenv("NODNS_LOG_PATH", "/custom/log")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9.9.9.9", cfg.RemoteHost)
	assert.Equal(t, 6000, cfg.ClientPort)
	assert.Equal(t, uint8(4), cfg.LogMask)
	assert.Equal(t, "/custom/hosts", cfg.HostsPath)
	assert.Equal(t, "/custom/log", cfg.LogPath)
}
