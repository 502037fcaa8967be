package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerAllowed(t *testing.T) {
	tests := []struct {
		name      string
		server    string
		allowlist string
		want      bool
	}{
		{"exact", "https://a.example", "https://a.example", true},
		{"trailing slash", "https://a.example/", "https://b.example, https://a.example", true},
		{"not listed", "https://c.example", "https://a.example,https://b.example", false},
		{"empty allowlist", "https://a.example", "", false},
		{"empty server", "", ",", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ServerAllowed(tt.server, tt.allowlist))
		})
	}
}

func TestParseEnvLine(t *testing.T) {
	key, value, ok := parseEnvLine(`export SEAFILE_X = "quoted value"`)
	require.True(t, ok)
	assert.Equal(t, "SEAFILE_X", key)
	assert.Equal(t, "quoted value", value)

	for _, line := range []string{"", "# comment", "no-equals", "=value"} {
		_, _, ok := parseEnvLine(line)
		assert.False(t, ok, line)
	}
}

func TestLoadDotEnv_KeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TESTUTIL_SET=file\nTESTUTIL_NEW='file'\n"), 0o600))

	t.Setenv("TESTUTIL_SET", "env")
	t.Setenv("TESTUTIL_NEW", "")
	os.Unsetenv("TESTUTIL_NEW")

	LoadDotEnv(path)

	assert.Equal(t, "env", os.Getenv("TESTUTIL_SET"))
	assert.Equal(t, "file", os.Getenv("TESTUTIL_NEW"))
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	LoadDotEnv(filepath.Join(t.TempDir(), "absent"))
}
