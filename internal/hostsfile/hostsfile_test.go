package hostsfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSkipsCommentsAndBlankLines(t *testing.T) {
	input := `
# a leading comment
home.lan 192.168.1.10

ads.example.com 0.0.0.0 # inline shield comment
ipv6.test fe80::1
`
	entries, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "home.lan", entries[0].Domain)
	assert.Equal(t, "192.168.1.10", entries[0].IPText)
	assert.Equal(t, "ads.example.com", entries[1].Domain)
	assert.Equal(t, "0.0.0.0", entries[1].IPText)
	assert.Equal(t, "fe80::1", entries[2].IPText)
}

func TestParseRejectsMalformedLine(t *testing.T) {
	_, err := Parse(strings.NewReader("just-one-field\n"))
	assert.Error(t, err)
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts")
	content := "home.lan 192.168.1.10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	entries, err := Load(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "home.lan", entries[0].Domain)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/hosts/file")
	assert.Error(t, err)
}
