package seafile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, authTokenPath, r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get(otpHeader))

		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "alice@example.com", r.PostForm.Get("username"))
		assert.Equal(t, "s3cret", r.PostForm.Get("password"))

		_, _ = w.Write([]byte(`{"token":"abc123"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	tok, err := c.Authenticate(context.Background(), "alice@example.com", "s3cret", "")
	require.NoError(t, err)
	assert.Equal(t, "abc123", tok)
	assert.Equal(t, "abc123", c.Token())
}

func TestAuthenticate_SendsOTPHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "123456", r.Header.Get(otpHeader))
		_, _ = w.Write([]byte(`{"token":"abc123"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Authenticate(context.Background(), "alice", "pw", "123456")
	require.NoError(t, err)
}

func TestAuthenticate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header string
		body   string
		want   error
	}{
		{"bad credentials", http.StatusBadRequest, "", `{"non_field_errors":["Unable to login with provided credentials."]}`, ErrAuthFailed},
		{"otp missing", http.StatusBadRequest, "", `{"non_field_errors":["Two factor auth token is missing."]}`, ErrTwoFactorRequired},
		{"otp invalid", http.StatusBadRequest, "", `{"non_field_errors":["Two factor auth token is invalid."]}`, ErrTwoFactorInvalid},
		{"otp header", http.StatusBadRequest, "required", `{}`, ErrTwoFactorRequired},
		{"server error", http.StatusInternalServerError, "", `oops`, ErrAuthFailed},
		{"empty token", http.StatusOK, "", `{"token":""}`, ErrAuthFailed},
		{"bad json", http.StatusOK, "", `not json`, ErrAuthFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tt.header != "" {
					w.Header().Set(otpHeader, tt.header)
				}

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL)
			_, err := c.Authenticate(context.Background(), "alice", "pw", "")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, c.Token())
		})
	}
}

func TestAuthenticate_ValidatesBeforeNetwork(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.Authenticate(context.Background(), " ", "pw", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = c.Authenticate(context.Background(), "alice", "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Equal(t, int32(0), calls.Load())
}

func TestPing(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"pong json", http.StatusOK, `"pong"`, true},
		{"pong bare", http.StatusOK, `pong`, true},
		{"unauthorized", http.StatusUnauthorized, `{"detail":"Invalid token"}`, false},
		{"unexpected body", http.StatusOK, `"ping"`, false},
		{"server error", http.StatusInternalServerError, ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				assert.Equal(t, pingPath, r.URL.Path)
				assert.Equal(t, "Token test-token", r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newAuthedClient(t, srv.URL)
			assert.Equal(t, tt.want, c.Ping(context.Background()))
			assert.Equal(t, int32(1), calls.Load(), "ping must not retry")
		})
	}
}

func TestPing_NoToken(t *testing.T) {
	c := newTestClient(t, "https://cloud.example.com")
	assert.False(t, c.Ping(context.Background()))
}

func TestPing_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newAuthedClient(t, url)
	assert.False(t, c.Ping(context.Background()))
}
