// Package seafiletest provides an in-process fake Seafile server for tests.
// It implements the subset of the web API the client uses, keeps uploaded
// files in memory, and counts calls per endpoint so tests can assert on
// network traffic.
package seafiletest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tonimelisma/seafile-filelink/internal/origin"
	"github.com/tonimelisma/seafile-filelink/internal/seafile"
)

// Endpoint names used as call-counter keys.
const (
	EndpointAuth       = "auth"
	EndpointPing       = "ping"
	EndpointRepos      = "repos"
	EndpointMkdir      = "mkdir"
	EndpointUploadLink = "upload-link"
	EndpointUpload     = "upload"
	EndpointShare      = "share"
	EndpointDelete     = "delete"
	EndpointAccount    = "account"
)

// Default credentials accepted by a new Server.
const (
	DefaultUsername = "alice@example.com"
	DefaultPassword = "correct horse"
)

// ShareRequest is the decoded body of the last share-link request.
type ShareRequest struct {
	RepoID     string `json:"repo_id"`
	Path       string `json:"path"`
	Password   string `json:"password,omitempty"`
	ExpireDays int    `json:"expire_days,omitempty"`
}

// Server is a fake Seafile server. Exported fields may be changed by tests
// before requests are made; use Lock/Unlock when changing them while
// requests are in flight.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	// PublicOrigin is the origin the server claims to live at in the links
	// it hands out. Zero means the httptest URL.
	PublicOrigin origin.Origin

	Username string
	Password string
	OTP      string // required one-time code; empty disables 2FA

	// otherUsers holds further accounts on the same server, by username.
	otherUsers map[string]string

	Repos []seafile.Repo

	// UploadLinkHost overrides the host of issued upload links.
	UploadLinkHost string

	// Forced failure statuses; zero means normal behavior.
	AuthStatus       int
	MkdirStatus      int
	UploadLinkStatus int
	UploadStatus     int
	ShareStatus      int
	DeleteStatus     int

	// UploadGate, when non-nil, blocks the upload handler until it is
	// closed or the client goes away. UploadStarted is signaled (non-
	// blocking) when an upload request arrives.
	UploadGate    chan struct{}
	UploadStarted chan struct{}

	// RenameUploads makes the server store uploads under "name (1).ext",
	// as Seafile does when the name is taken.
	RenameUploads bool

	tokens    map[string]string // token -> username
	logins    []string
	calls     map[string]int
	dirs      map[string]bool
	files     map[string][]byte
	lastShare *ShareRequest
	now       func() time.Time
}

// NewServer starts a fake server and registers its shutdown with t.Cleanup.
func NewServer(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		Username: DefaultUsername,
		Password: DefaultPassword,
		Repos: []seafile.Repo{
			{ID: "lib1", Name: "Mail", Permission: seafile.PermissionReadWrite, Type: "repo", Owner: DefaultUsername},
			{ID: "lib2", Name: "Vault", Encrypted: true, Permission: seafile.PermissionReadWrite, Type: "repo"},
			{ID: "lib3", Name: "Team Docs", Permission: seafile.PermissionReadOnly, Type: "srepo"},
		},
		UploadStarted: make(chan struct{}, 1),
		tokens:        make(map[string]string),
		otherUsers:    make(map[string]string),
		calls:         make(map[string]int),
		dirs:          make(map[string]bool),
		files:         make(map[string][]byte),
		now:           time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api2/auth-token/", s.handleAuth)
	mux.HandleFunc("GET /api2/auth/ping/", s.authed(EndpointPing, s.handlePing))
	mux.HandleFunc("GET /api2/repos/", s.authed(EndpointRepos, s.handleRepos))
	mux.HandleFunc("POST /api2/repos/{repo}/dir/", s.authed(EndpointMkdir, s.handleMkdir))
	mux.HandleFunc("GET /api2/repos/{repo}/upload-link/", s.authed(EndpointUploadLink, s.handleUploadLink))
	mux.HandleFunc("DELETE /api2/repos/{repo}/file/", s.authed(EndpointDelete, s.handleDelete))
	mux.HandleFunc("POST /api/v2.1/share-links/", s.authed(EndpointShare, s.handleShare))
	mux.HandleFunc("GET /api2/account/info/", s.authed(EndpointAccount, s.handleAccount))
	mux.HandleFunc("POST /seafhttp/upload-api/{ticket}", s.handleUpload)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)

	return s
}

// Origin returns the origin clients should be configured with.
func (s *Server) Origin() origin.Origin {
	if !s.PublicOrigin.IsZero() {
		return s.PublicOrigin
	}

	return origin.MustNormalize(s.URL)
}

// HTTPClient returns a client that delivers every request to this server
// regardless of the host in the URL, so a PublicOrigin such as
// https://cloud.example.com reaches the fake.
func (s *Server) HTTPClient() *http.Client {
	target, _ := url.Parse(s.URL) //nolint:errcheck // httptest URLs always parse

	return &http.Client{Transport: &rewriteTransport{target: target, base: http.DefaultTransport}}
}

// IssueToken registers a token for Username as valid and returns it.
func (s *Server) IssueToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.issueTokenLocked(s.Username)
}

// AddUser lets another account sign in to the server.
func (s *Server) AddUser(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.otherUsers[username] = password
}

// TokenOwner returns the user a token was issued to, or "" for unknown
// tokens.
func (s *Server) TokenOwner(token string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tokens[token]
}

// Logins returns the usernames of successful sign-ins, oldest first.
func (s *Server) Logins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.logins...)
}

// RevokeTokens invalidates every issued token.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.tokens)
}

// Calls returns how often an endpoint was hit.
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[endpoint]
}

// TotalCalls returns the number of requests across all endpoints.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.calls {
		n += c
	}

	return n
}

// File returns the stored content of repoID:filePath.
func (s *Server) File(repoID, filePath string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.files[fileKey(repoID, filePath)]

	return data, ok
}

// FileCount returns the number of stored files.
func (s *Server) FileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.files)
}

// DirExists reports whether a directory was created.
func (s *Server) DirExists(repoID, dirPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dirs[fileKey(repoID, dirPath)]
}

// LastShare returns the last share-link request body, or nil.
func (s *Server) LastShare() *ShareRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastShare
}

// SetNow fixes the clock used for share-link expiry dates.
func (s *Server) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.now = now
}

func (s *Server) issueTokenLocked(username string) string {
	tok := strings.ReplaceAll(uuid.NewString(), "-", "")
	s.tokens[tok] = username

	return tok
}

func (s *Server) count(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[endpoint]++
}

// authed counts the call and rejects requests without a valid token.
func (s *Server) authed(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.count(endpoint)

		tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Token ")

		s.mu.Lock()
		valid := ok && s.tokens[tok] != ""
		s.mu.Unlock()

		if !valid {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token"})
			return
		}

		next(w, r)
	}
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	s.count(EndpointAuth)

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad form"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.AuthStatus != 0 {
		writeJSON(w, s.AuthStatus, map[string]string{"detail": "server unavailable"})
		return
	}

	username := r.PostForm.Get("username")
	if !s.passwordMatchesLocked(username, r.PostForm.Get("password")) {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"non_field_errors": {"Unable to login with provided credentials."},
		})

		return
	}

	if s.OTP != "" {
		switch r.Header.Get("X-SEAFILE-OTP") {
		case "":
			w.Header().Set("X-Seafile-OTP", "required")
			writeJSON(w, http.StatusBadRequest, map[string][]string{
				"non_field_errors": {"Two factor auth token is missing."},
			})

			return
		case s.OTP:
		default:
			writeJSON(w, http.StatusBadRequest, map[string][]string{
				"non_field_errors": {"Two factor auth token is invalid."},
			})

			return
		}
	}

	s.logins = append(s.logins, username)

	writeJSON(w, http.StatusOK, map[string]string{"token": s.issueTokenLocked(username)})
}

func (s *Server) passwordMatchesLocked(username, password string) bool {
	if username == s.Username {
		return password == s.Password
	}

	want, ok := s.otherUsers[username]

	return ok && password == want
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, "pong")
}

func (s *Server) handleRepos(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	repos := append([]seafile.Repo(nil), s.Repos...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, repos)
}

func (s *Server) handleMkdir(w http.ResponseWriter, r *http.Request) {
	repo := r.PathValue("repo")
	dir := r.URL.Query().Get("p")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.MkdirStatus != 0 {
		writeJSON(w, s.MkdirStatus, map[string]string{"error_msg": "cannot create"})
		return
	}

	key := fileKey(repo, dir)
	if s.dirs[key] {
		writeJSON(w, http.StatusConflict, map[string]string{"error_msg": "Folder already exists."})
		return
	}

	s.dirs[key] = true
	writeJSON(w, http.StatusCreated, "success")
}

func (s *Server) handleUploadLink(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UploadLinkStatus != 0 {
		writeJSON(w, s.UploadLinkStatus, map[string]string{"error_msg": "no link"})
		return
	}

	base := s.publicOriginLocked()
	if s.UploadLinkHost != "" {
		u, _ := url.Parse(base) //nolint:errcheck // origins always parse
		u.Host = s.UploadLinkHost
		base = u.String()
	}

	link := fmt.Sprintf("%s/seafhttp/upload-api/%s", base, uuid.NewString())
	writeJSON(w, http.StatusOK, link)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.count(EndpointUpload)

	select {
	case s.UploadStarted <- struct{}{}:
	default:
	}

	if gate := s.UploadGate; gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	status := s.UploadStatus
	s.mu.Unlock()

	if status != 0 {
		writeJSON(w, status, map[string]string{"error": "quota exceeded"})
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad multipart"})
		return
	}

	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read"})
		return
	}

	// The repo is bound to the ticket on a real server; the fake resolves it
	// from the only writable repo the upload-link request could have named.
	parent := r.FormValue("parent_dir")
	name := hdr.Filename

	s.mu.Lock()
	defer s.mu.Unlock()

	repo := s.repoForDirLocked(parent)
	if s.RenameUploads {
		ext := path.Ext(name)
		name = strings.TrimSuffix(name, ext) + " (1)" + ext
	}

	s.files[fileKey(repo, path.Join(parent, name))] = data

	writeJSON(w, http.StatusOK, []seafile.UploadedFile{{Name: name, ID: uuid.NewString(), Size: int64(len(data))}})
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	var req ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error_msg": "bad json"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastShare = &req

	if s.ShareStatus != 0 {
		writeJSON(w, s.ShareStatus, map[string]string{"error_msg": "internal path /srv/seafile/data leaked"})
		return
	}

	if _, ok := s.files[fileKey(req.RepoID, req.Path)]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error_msg": "file not found"})
		return
	}

	tok := uuid.NewString()[:20]

	resp := map[string]any{
		"token":   tok,
		"link":    s.publicOriginLocked() + "/f/" + tok + "/",
		"repo_id": req.RepoID,
		"path":    req.Path,
	}

	if req.ExpireDays > 0 {
		resp["expire_date"] = s.now().Add(time.Duration(req.ExpireDays) * 24 * time.Hour).UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := fileKey(r.PathValue("repo"), r.URL.Query().Get("p"))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.DeleteStatus != 0 {
		writeJSON(w, s.DeleteStatus, map[string]string{"error_msg": "cannot delete"})
		return
	}

	delete(s.files, key)
	writeJSON(w, http.StatusOK, "success")
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	tok, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Token ")

	s.mu.Lock()
	defer s.mu.Unlock()

	var usage int64
	for _, data := range s.files {
		usage += int64(len(data))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"email": s.tokens[tok],
		"name":  s.tokens[tok],
		"usage": usage,
		"total": int64(10 << 30),
	})
}

func (s *Server) publicOriginLocked() string {
	if !s.PublicOrigin.IsZero() {
		return s.PublicOrigin.String()
	}

	return origin.MustNormalize(s.URL).String()
}

// repoForDirLocked picks the repo whose directory tree contains dir, falling
// back to the first writable repo.
func (s *Server) repoForDirLocked(dir string) string {
	for _, r := range s.Repos {
		if s.dirs[fileKey(r.ID, dir)] {
			return r.ID
		}
	}

	for _, r := range s.Repos {
		if r.Writable() {
			return r.ID
		}
	}

	return ""
}

func fileKey(repoID, p string) string {
	return repoID + ":" + seafile.SanitizePath(p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test server
}

type rewriteTransport struct {
	target *url.URL
	base   http.RoundTripper
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = t.target.Scheme
	out.URL.Host = t.target.Host
	out.Host = t.target.Host

	return t.base.RoundTrip(out)
}
