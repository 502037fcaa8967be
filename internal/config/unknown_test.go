package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownKeys_Suggestions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"top level", `log_levle = "info"`, `unknown config key "log_levle", did you mean "log_level"?`},
		{"network", "[network]\nconect_timeout = \"5s\"", `unknown config key "conect_timeout" in [network], did you mean "connect_timeout"?`},
		{"upload", "[upload]\ndefault_pth = \"/x\"", `did you mean "default_path"?`},
		{
			"account",
			"[accounts.\"a1\"]\norigin = \"https://h.example\"\nusername = \"u\"\ncontainer_id = \"r\"\nusrname = \"x\"",
			`unknown config key "usrname" in account "a1", did you mean "username"?`,
		},
		{"no suggestion", `completely_unrelated = 1`, `unknown config key "completely_unrelated"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTestConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUnknownKeys_AllReported(t *testing.T) {
	_, err := Load(writeTestConfig(t, "aaa_one = 1\nbbb_two = 2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aaa_one")
	assert.Contains(t, err.Error(), "bbb_two")
}

func TestClosestMatch(t *testing.T) {
	known := []string{"log_level", "network", "upload"}

	assert.Equal(t, "log_level", closestMatch("log_lvl", known))
	assert.Equal(t, "upload", closestMatch("uplod", known))
	assert.Empty(t, closestMatch("zzzzzzzzzz", known))
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"same", "same", 0},
		{"flaw", "lawn", 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}
