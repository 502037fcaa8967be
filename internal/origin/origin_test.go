package origin

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Valid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		host string
	}{
		{"plain https", "https://cloud.example.com", "https://cloud.example.com", "cloud.example.com"},
		{"trailing slash", "https://cloud.example.com/", "https://cloud.example.com", "cloud.example.com"},
		{"path dropped", "https://cloud.example.com/seafile/#/libs", "https://cloud.example.com", "cloud.example.com"},
		{"uppercase", "HTTPS://Cloud.Example.COM", "https://cloud.example.com", "cloud.example.com"},
		{"default https port", "https://cloud.example.com:443/", "https://cloud.example.com", "cloud.example.com"},
		{"default http port", "http://files.local:80", "http://files.local", "files.local"},
		{"custom port", "http://files.local:8000/", "http://files.local:8000", "files.local"},
		{"surrounding space", "  https://cloud.example.com  ", "https://cloud.example.com", "cloud.example.com"},
		{"ipv6", "http://[::1]:8082/", "http://[::1]:8082", "::1"},
		{"ipv6 default port", "https://[::1]", "https://[::1]", "::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := Normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, o.String())
			assert.Equal(t, tt.host, o.Host())
			assert.False(t, o.IsZero())
		})
	}
}

func TestNormalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"no scheme", "cloud.example.com"},
		{"ftp", "ftp://cloud.example.com"},
		{"no host", "https://"},
		{"credentials", "https://user:pw@cloud.example.com"},
		{"garbage", "://bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"https://cloud.example.com",
		"HTTP://Files.Local:8000/some/path?q=1",
		"https://cloud.example.com:443",
		"http://[fe80::1]:9000",
		"https://[::1]/",
	}

	for _, raw := range inputs {
		first, err := Normalize(raw)
		require.NoError(t, err, raw)

		second, err := Normalize(first.String())
		require.NoError(t, err, raw)
		assert.Equal(t, first, second, raw)
	}
}

func TestSameHost(t *testing.T) {
	o := MustNormalize("https://cloud.example.com")

	assert.True(t, o.SameHost("https://cloud.example.com/seafhttp/upload-api/abc"))
	assert.True(t, o.SameHost("https://CLOUD.example.com:8082/seafhttp/upload-api/abc"))
	assert.False(t, o.SameHost("https://evil.example.net/seafhttp/upload-api/abc"))
	assert.False(t, o.SameHost("https://cloud.example.com.evil.net/upload"))
	assert.False(t, o.SameHost("::not a url"))
	assert.False(t, Origin{}.SameHost("https://cloud.example.com"))
}

func TestOrigin_TextRoundTrip(t *testing.T) {
	type wrapper struct {
		Origin Origin `json:"origin"`
	}

	data, err := json.Marshal(wrapper{Origin: MustNormalize("https://cloud.example.com/")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"origin":"https://cloud.example.com"}`, string(data))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"origin":"HTTPS://Cloud.Example.com:443"}`), &w))
	assert.Equal(t, "https://cloud.example.com", w.Origin.String())

	var empty wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"origin":""}`), &empty))
	assert.True(t, empty.Origin.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"origin":"ftp://x"}`), &w))
}

func TestMustNormalize_Panics(t *testing.T) {
	assert.Panics(t, func() { MustNormalize("not-a-url") })
}
