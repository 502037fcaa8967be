package seafile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "/"},
		{"root", "/", "/"},
		{"plain", "/Thunderbird-Attachments", "/Thunderbird-Attachments"},
		{"no leading slash", "Thunderbird-Attachments", "/Thunderbird-Attachments"},
		{"trailing slash", "/a/b/", "/a/b"},
		{"repeated separators", "//a///b//", "/a/b"},
		{"dot dot", "/a/../../etc/passwd", "/a/etc/passwd"},
		{"only dot dot", "../..", "/"},
		{"dot", "/a/./b", "/a/b"},
		{"backslashes", `\a\..\b`, "/a/b"},
		{"dots inside names kept", "/a..b/c.d", "/a..b/c.d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizePath(tt.in))
		})
	}
}

func TestSanitizePath_Properties(t *testing.T) {
	inputs := []string{
		"..", "/../..//x", "a//b/../c", "////", `..\..\x`, "/x/./../y//z/..",
		"/Thunderbird-Attachments", "../../../root/.ssh",
	}

	for _, in := range inputs {
		out := SanitizePath(in)

		require.True(t, strings.HasPrefix(out, "/"), in)
		assert.False(t, strings.HasPrefix(out, "//"), in)
		assert.NotContains(t, out, "//", in)

		for _, seg := range strings.Split(out, "/") {
			assert.NotEqual(t, "..", seg, in)
		}

		assert.Equal(t, out, SanitizePath(out), "sanitize must be idempotent for %q", in)
	}
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "/dir/report.pdf", JoinPath("dir/", "report.pdf"))
	assert.Equal(t, "/report.pdf", JoinPath("/", "../report.pdf"))
}

func TestAncestors(t *testing.T) {
	assert.Nil(t, ancestors("/"))
	assert.Equal(t, []string{"/a"}, ancestors("a"))
	assert.Equal(t, []string{"/a", "/a/b", "/a/b/c"}, ancestors("//a/b/./c/"))
}

func TestCleanFileName(t *testing.T) {
	name, err := cleanFileName("report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", name)

	name, err = cleanFileName("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "passwd", name)

	name, err = cleanFileName(`C:\Users\me\notes.txt`)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", name)

	// NFD "é" (e + combining acute) becomes NFC.
	name, err = cleanFileName("re\u0301sume\u0301.pdf")
	require.NoError(t, err)
	assert.Equal(t, "r\u00e9sum\u00e9.pdf", name)

	for _, bad := range []string{"", "  ", ".", "..", "/"} {
		_, err := cleanFileName(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, bad)
	}
}

func TestPathQuery(t *testing.T) {
	assert.Equal(t, "p=%2Fa+b%2Fc", pathQuery("a b//c"))
}
