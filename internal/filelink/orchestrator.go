package filelink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tonimelisma/seafile-filelink/internal/config"
	"github.com/tonimelisma/seafile-filelink/internal/origin"
	"github.com/tonimelisma/seafile-filelink/internal/seafile"
	"github.com/tonimelisma/seafile-filelink/internal/session"
	"github.com/tonimelisma/seafile-filelink/internal/vault"
)

// Sessions supplies live API sessions.
type Sessions interface {
	GetSession(ctx context.Context, accountID string) (*session.Session, error)
	Evict(accountID string)
}

// Secrets is the vault surface the orchestrator uses.
type Secrets interface {
	GetFor(o origin.Origin, realm vault.Realm, username string) (*vault.Credential, error)
	Put(o origin.Origin, realm vault.Realm, username, secret string) error
	DeleteMatching(o origin.Origin, realm vault.Realm, username string) (int, error)
}

// Accounts is the config store surface the orchestrator uses.
type Accounts interface {
	Account(id string) *config.Account
	AccountIDs() []string
	SetAccount(id string, a config.Account) error
	RemoveAccount(id string) (bool, error)
}

// UploadRequest is one attachment to upload.
type UploadRequest struct {
	AccountID string
	FileID    string // host-assigned attachment id, unique while in flight
	FileName  string
	Data      []byte
}

// Result is what the host shows in place of the attachment.
type Result struct {
	URL               string
	ExpiresAt         time.Time // zero when the link never expires
	PasswordProtected bool
	StoredName        string // may differ from the requested name after a server-side rename
}

// Record tracks a completed upload so a later delete can remove it.
type Record struct {
	FileID     string
	AccountID  string
	RepoID     string
	RemotePath string
	ShareToken string
}

// inflight is an upload between Started and a terminal state.
type inflight struct {
	cancel  context.CancelFunc
	state   State
	aborted bool
}

// Orchestrator runs uploads and their compensating deletions. The tracking
// tables are keyed by file id; concurrent operations on different files
// never contend beyond the map lock.
type Orchestrator struct {
	sessions Sessions
	secrets  Secrets
	accounts Accounts
	logger   *slog.Logger

	// NewClient builds clients for test-connection, which runs before an
	// account exists. Exported for test injection.
	NewClient session.ClientFactory

	// Now is the clock used for share-link expiry dates. Exported for test
	// injection; defaults to time.Now.
	Now func() time.Time

	// DefaultExpireDays applies when save-config does not name an expiry.
	DefaultExpireDays int

	mu       sync.Mutex
	inflight map[string]*inflight
	records  map[string]Record
}

// NewOrchestrator creates an Orchestrator. All dependencies are required.
func NewOrchestrator(
	sessions Sessions, secrets Secrets, accounts Accounts,
	newClient session.ClientFactory, logger *slog.Logger,
) *Orchestrator {
	if sessions == nil || secrets == nil || accounts == nil || newClient == nil {
		panic("filelink: NewOrchestrator requires sessions, secrets, accounts, and a client factory")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		sessions:  sessions,
		secrets:   secrets,
		accounts:  accounts,
		logger:    logger,
		NewClient: newClient,
		Now:       time.Now,
		inflight:  make(map[string]*inflight),
		records:   make(map[string]Record),
	}
}

// Upload uploads one attachment and returns its share link. Any failure
// returns an error and leaves no Record behind. Cancel ctx or call Abort
// with the same FileID to stop the transfer.
func (o *Orchestrator) Upload(ctx context.Context, req UploadRequest) (*Result, error) {
	if strings.TrimSpace(req.FileID) == "" {
		return nil, fmt.Errorf("%w: file id is empty", seafile.ErrInvalidInput)
	}

	if strings.TrimSpace(req.FileName) == "" {
		return nil, fmt.Errorf("%w: file name is empty", seafile.ErrInvalidInput)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := o.begin(req.FileID, cancel); err != nil {
		return nil, err
	}

	logger := o.logger.With(
		slog.String("upload_id", uuid.NewString()),
		slog.String("file_id", req.FileID),
		slog.String("account_id", req.AccountID),
	)

	res, err := o.run(ctx, req, logger)
	if err != nil {
		final := StateFailed
		if o.wasAborted(req.FileID) {
			final, err = StateAborted, fmt.Errorf("%w: %w", ErrAborted, err)
		}

		o.finish(req.FileID, final, logger)
		logger.Warn("upload did not complete",
			slog.String("state", final.String()),
			slog.String("code", Code(err)),
			slog.String("error", err.Error()),
		)

		return nil, err
	}

	o.finish(req.FileID, StateDone, logger)

	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, req UploadRequest, logger *slog.Logger) (*Result, error) {
	sess, err := o.sessions.GetSession(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	client, acct := sess.Client, sess.Account
	dir := seafile.SanitizePath(acct.UploadPath)

	if err := client.EnsureDirectory(ctx, acct.RepoID, dir); err != nil {
		return nil, err
	}

	o.advance(req.FileID, StateDirectoryEnsured, logger)

	link, err := client.RequestUploadLink(ctx, acct.RepoID, dir)
	if err != nil {
		return nil, err
	}

	o.advance(req.FileID, StateTicketAcquired, logger)

	uploaded, err := client.UploadBytes(ctx, link, dir, req.Data, req.FileName)
	if err != nil {
		return nil, err
	}

	rec := Record{
		FileID:     req.FileID,
		AccountID:  req.AccountID,
		RepoID:     acct.RepoID,
		RemotePath: seafile.JoinPath(dir, uploaded.Name),
	}

	// An abort that lands after the bytes arrived still has to leave nothing
	// behind on the server.
	if !o.advanceTracking(req.FileID, StateUploaded, rec, logger) {
		o.compensate(client, rec, logger)

		return nil, ctx.Err()
	}

	opts, err := o.shareOptions(acct)
	if err != nil {
		o.compensate(client, rec, logger)

		return nil, err
	}

	share, err := client.CreateShareLink(ctx, acct.RepoID, rec.RemotePath, opts)
	if err != nil {
		o.compensate(client, rec, logger)

		return nil, err
	}

	rec.ShareToken = share.Token

	// Past this point Abort declines, so the record stays for a later Delete.
	if !o.advanceTracking(req.FileID, StateShareLinkCreated, rec, logger) {
		o.compensate(client, rec, logger)

		return nil, ctx.Err()
	}

	res := &Result{
		URL:               share.Link,
		PasswordProtected: opts.Password != "",
		StoredName:        uploaded.Name,
	}

	if opts.ExpireDays > 0 {
		res.ExpiresAt = o.Now().Add(time.Duration(opts.ExpireDays) * 24 * time.Hour)
	}

	logger.Info("attachment shared",
		slog.String("path", rec.RemotePath),
		slog.Int("expire_days", opts.ExpireDays),
		slog.Bool("password_protected", res.PasswordProtected),
	)

	return res, nil
}

// shareOptions reads the share password (when the account has one) and the
// clamped expiry.
func (o *Orchestrator) shareOptions(acct config.Account) (seafile.ShareOptions, error) {
	opts := seafile.ShareOptions{ExpireDays: seafile.ClampExpireDays(acct.ShareExpireDays)}

	if !acct.HasSharePassword {
		return opts, nil
	}

	cred, err := o.secrets.GetFor(acct.Origin, vault.RealmSharePassword, acct.Username)
	if err != nil {
		return opts, fmt.Errorf("reading share password: %w: %w", seafile.ErrShareLinkFailed, err)
	}

	if cred != nil {
		opts.Password = cred.Secret
	}

	return opts, nil
}

// Abort cancels an in-flight upload and drops its tracking. It reports
// whether an upload was stopped. Uploads that never reached Uploaded leave
// nothing on the server to clean up. Once the share link exists the upload
// counts as done: Abort returns false and Delete removes the file.
func (o *Orchestrator) Abort(fileID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, ok := o.inflight[fileID]
	if !ok || f.state == StateShareLinkCreated {
		return false
	}

	f.aborted = true
	f.cancel()
	delete(o.records, fileID)

	o.logger.Info("upload aborted",
		slog.String("file_id", fileID),
		slog.String("state", f.state.String()),
	)

	return true
}

// Delete removes the remote file of a completed upload. It is a no-op when
// fileID is not tracked. The record is dropped whatever the outcome;
// failures are logged, never returned. It reports whether a record existed.
func (o *Orchestrator) Delete(ctx context.Context, fileID string) bool {
	o.mu.Lock()
	rec, ok := o.records[fileID]
	delete(o.records, fileID)
	o.mu.Unlock()

	if !ok {
		o.logger.Debug("delete for untracked file ignored", slog.String("file_id", fileID))

		return false
	}

	sess, err := o.sessions.GetSession(ctx, rec.AccountID)
	if err != nil {
		o.logger.Warn("cleanup skipped: no session",
			slog.String("file_id", fileID),
			slog.String("account_id", rec.AccountID),
			slog.String("error", err.Error()),
		)

		return true
	}

	if rec.RepoID != sess.Account.RepoID {
		o.logger.Debug("account now targets another library, deleting from the original",
			slog.String("repo_id", rec.RepoID),
		)
	}

	if !sess.Client.DeleteFile(ctx, rec.RepoID, rec.RemotePath) {
		o.logger.Warn("cleanup failed", slog.String("file_id", fileID), slog.String("path", rec.RemotePath))

		return true
	}

	o.logger.Info("remote file deleted", slog.String("file_id", fileID), slog.String("path", rec.RemotePath))

	return true
}

// DeleteAccount forgets an account: its secrets in all three realms, its
// config section, and its cached session. Every step is best-effort; the
// joined errors are returned for diagnostics only.
func (o *Orchestrator) DeleteAccount(accountID string) error {
	defer o.sessions.Evict(accountID)

	acct := o.accounts.Account(accountID)
	if acct == nil {
		o.logger.Debug("delete for unknown account ignored", slog.String("account_id", accountID))

		return nil
	}

	var errs []error

	if !o.sharedCredentials(accountID, acct.Origin, acct.Username) {
		for _, realm := range vault.Realms() {
			if _, err := o.secrets.DeleteMatching(acct.Origin, realm, acct.Username); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if _, err := o.accounts.RemoveAccount(accountID); err != nil {
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	if err != nil {
		o.logger.Warn("account cleanup incomplete",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
	} else {
		o.logger.Info("account removed", slog.String("account_id", accountID), slog.String("origin", acct.Origin.String()))
	}

	return err
}

// Records returns a snapshot of the tracked uploads.
func (o *Orchestrator) Records() []Record {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Record, 0, len(o.records))
	for _, r := range o.records {
		out = append(out, r)
	}

	return out
}

// State returns the state of an in-flight upload.
func (o *Orchestrator) State(fileID string) (State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, ok := o.inflight[fileID]
	if !ok {
		return 0, false
	}

	return f.state, true
}

// sharedCredentials reports whether another account uses the same server
// and username, in which case the secrets stay.
func (o *Orchestrator) sharedCredentials(accountID string, org origin.Origin, username string) bool {
	for _, id := range o.accounts.AccountIDs() {
		if id == accountID {
			continue
		}

		if a := o.accounts.Account(id); a != nil && a.Origin == org && a.Username == username {
			return true
		}
	}

	return false
}

func (o *Orchestrator) begin(fileID string, cancel context.CancelFunc) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.inflight[fileID]; busy {
		return fmt.Errorf("%w: upload %q already in progress", seafile.ErrInvalidInput, fileID)
	}

	o.inflight[fileID] = &inflight{cancel: cancel, state: StateStarted}

	return nil
}

// advance moves an upload to next. It returns false when the upload was
// aborted in the meantime.
func (o *Orchestrator) advance(fileID string, next State, logger *slog.Logger) bool {
	return o.transition(fileID, next, nil, logger)
}

// advanceTracking is advance that also stores rec under the same lock, so
// an Abort sees either neither change or both.
func (o *Orchestrator) advanceTracking(fileID string, next State, rec Record, logger *slog.Logger) bool {
	return o.transition(fileID, next, &rec, logger)
}

func (o *Orchestrator) transition(fileID string, next State, rec *Record, logger *slog.Logger) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, ok := o.inflight[fileID]
	if !ok || f.aborted {
		return false
	}

	logger.Debug("upload state", slog.String("from", f.state.String()), slog.String("to", next.String()))
	f.state = next

	if rec != nil {
		o.records[fileID] = *rec
	}

	return true
}

func (o *Orchestrator) wasAborted(fileID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, ok := o.inflight[fileID]

	return !ok || f.aborted
}

func (o *Orchestrator) finish(fileID string, final State, logger *slog.Logger) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if f, ok := o.inflight[fileID]; ok {
		logger.Debug("upload state", slog.String("from", f.state.String()), slog.String("to", final.String()))
	}

	delete(o.inflight, fileID)

	if final != StateDone {
		delete(o.records, fileID)
	}
}

// compensate removes a file that reached the server but will not be shared.
// It runs on a fresh context because the upload's own may be canceled.
func (o *Orchestrator) compensate(client *seafile.Client, rec Record, logger *slog.Logger) {
	o.mu.Lock()
	delete(o.records, rec.FileID)
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), compensateTimeout)
	defer cancel()

	if client.DeleteFile(ctx, rec.RepoID, rec.RemotePath) {
		logger.Info("removed unshared upload", slog.String("path", rec.RemotePath))

		return
	}

	logger.Warn("could not remove unshared upload", slog.String("path", rec.RemotePath))
}

const compensateTimeout = 30 * time.Second
