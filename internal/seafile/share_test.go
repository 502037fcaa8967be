package seafile

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampExpireDays(t *testing.T) {
	assert.Equal(t, 0, ClampExpireDays(-5))
	assert.Equal(t, 0, ClampExpireDays(0))
	assert.Equal(t, 7, ClampExpireDays(7))
	assert.Equal(t, 365, ClampExpireDays(365))
	assert.Equal(t, 365, ClampExpireDays(10000))
}

// captureShareBody starts a server that records the decoded share-link
// request body and answers with resp.
func captureShareBody(t *testing.T, status int, resp string) (*httptest.Server, *map[string]any) {
	t.Helper()

	got := map[string]any{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, shareLinksPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)

	return srv, &got
}

func TestCreateShareLink_OmitsUnsetFields(t *testing.T) {
	srv, got := captureShareBody(t, http.StatusOK,
		`{"token":"abc","link":"https://cloud.example.com/f/abc/","repo_id":"lib1","path":"/a.pdf","expire_date":null}`)

	c := newAuthedClient(t, srv.URL)
	link, err := c.CreateShareLink(context.Background(), "lib1", "a.pdf", ShareOptions{})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"repo_id": "lib1", "path": "/a.pdf"}, *got)
	assert.Equal(t, "https://cloud.example.com/f/abc/", link.Link)
	assert.Equal(t, "abc", link.Token)
	assert.True(t, link.ExpireDate.IsZero())
}

func TestCreateShareLink_PasswordAndClampedExpiry(t *testing.T) {
	srv, got := captureShareBody(t, http.StatusOK,
		`{"token":"abc","link":"https://cloud.example.com/f/abc/","expire_date":"2026-10-21T10:00:00+00:00"}`)

	c := newAuthedClient(t, srv.URL)
	link, err := c.CreateShareLink(context.Background(), "lib1", "/a.pdf",
		ShareOptions{Password: "letmein1", ExpireDays: 9999})
	require.NoError(t, err)

	assert.Equal(t, "letmein1", (*got)["password"])
	assert.InDelta(t, 365, (*got)["expire_days"], 0)
	assert.Equal(t, time.Date(2026, 10, 21, 10, 0, 0, 0, time.UTC), link.ExpireDate.UTC())
}

func TestCreateShareLink_FailureHidesServerDetail(t *testing.T) {
	srv, _ := captureShareBody(t, http.StatusBadRequest, `{"error_msg":"Password is too short: internal rule 42."}`)

	c := newAuthedClient(t, srv.URL)
	_, err := c.CreateShareLink(context.Background(), "lib1", "/a.pdf", ShareOptions{Password: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShareLinkFailed)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
	assert.NotContains(t, err.Error(), "internal rule")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Reason, "internal rule", "reason kept for diagnostics")
}

func TestCreateShareLink_RejectsRoot(t *testing.T) {
	c := newAuthedClient(t, "https://cloud.example.com")

	_, err := c.CreateShareLink(context.Background(), "lib1", "/../", ShareOptions{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateShareLink_Unauthenticated(t *testing.T) {
	c := newTestClient(t, "https://cloud.example.com")

	_, err := c.CreateShareLink(context.Background(), "lib1", "/a.pdf", ShareOptions{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAccountInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api2/account/info/", r.URL.Path)
		_, _ = w.Write([]byte(`{"email":"alice@example.com","name":"Alice","usage":1024,"total":-2}`))
	}))
	defer srv.Close()

	c := newAuthedClient(t, srv.URL)
	info, err := c.AccountInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", info.Email)
	assert.Equal(t, int64(1024), info.UsageBytes)
	assert.Equal(t, int64(-2), info.QuotaBytes)
}

func TestAccountInfo_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newAuthedClient(t, srv.URL)
	_, err := c.AccountInfo(context.Background())
	assert.ErrorIs(t, err, ErrAccountInfoFailed)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
}
