package filelink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tonimelisma/seafile-filelink/internal/config"
	"github.com/tonimelisma/seafile-filelink/internal/origin"
	"github.com/tonimelisma/seafile-filelink/internal/seafile"
	"github.com/tonimelisma/seafile-filelink/internal/vault"
)

// TestRequest is the settings page's "test connection" form.
type TestRequest struct {
	ServerURL string
	Username  string
	Password  string // empty = use the stored password for this server and user
	OTPCode   string
}

// Library is a writable library offered as an upload target.
type Library struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TestResult describes a successful connection test.
type TestResult struct {
	Email      string    `json:"email"`
	UsageBytes int64     `json:"usage"`
	QuotaBytes int64     `json:"quota"`
	Libraries  []Library `json:"repos"`
	Token      string    `json:"token"`
}

// Settings is an account's configuration including its secrets, as the
// settings page edits it.
type Settings struct {
	ServerURL        string `json:"serverUrl"`
	Username         string `json:"username"`
	Password         string `json:"password,omitempty"`
	Token            string `json:"token,omitempty"`
	ContainerID      string `json:"containerId"`
	ContainerName    string `json:"containerName,omitempty"`
	UploadPath       string `json:"uploadPath"`
	ShareExpireDays  *int   `json:"shareExpireDays,omitempty"`
	HasSharePassword bool   `json:"hasShareLinkPassword"`
	SharePassword    string `json:"shareLinkPassword,omitempty"`
}

// TestConnection logs in with the given credentials and reports the
// account's email, usage and writable libraries. Encrypted and read-only
// libraries are left out because attachments cannot be uploaded into them.
// Nothing is stored.
func (o *Orchestrator) TestConnection(ctx context.Context, req TestRequest) (*TestResult, error) {
	org, err := origin.Normalize(req.ServerURL)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)

	password := req.Password
	if password == "" {
		password = o.storedSecret(org, vault.RealmPassword, username)
	}

	client := o.NewClient(org)

	token, err := client.Authenticate(ctx, username, password, strings.TrimSpace(req.OTPCode))
	if err != nil {
		return nil, err
	}

	info, err := client.AccountInfo(ctx)
	if err != nil {
		return nil, err
	}

	repos, err := client.ListRepos(ctx)
	if err != nil {
		return nil, err
	}

	res := &TestResult{
		Email:      info.Email,
		UsageBytes: info.UsageBytes,
		QuotaBytes: info.QuotaBytes,
		Libraries:  make([]Library, 0, len(repos)),
		Token:      token,
	}

	for _, r := range repos {
		if r.Writable() {
			res.Libraries = append(res.Libraries, Library{ID: r.ID, Name: r.Name})
		}
	}

	o.logger.Info("connection test succeeded",
		slog.String("origin", org.String()),
		slog.Int("libraries", len(res.Libraries)),
		slog.Int("skipped", len(repos)-len(res.Libraries)),
	)

	return res, nil
}

// SaveConfig stores an account's settings: secrets go to the vault, the
// rest to the config file. An empty password or share password keeps the
// stored one. Secrets of a previous server or user are removed, and the
// cached session is dropped so the next upload uses the new settings.
func (o *Orchestrator) SaveConfig(accountID string, s Settings) error {
	acct, err := o.accountFromSettings(accountID, s)
	if err != nil {
		return err
	}

	if s.Password == "" && o.storedSecret(acct.Origin, vault.RealmPassword, acct.Username) == "" {
		return fmt.Errorf("%w: password is required", seafile.ErrInvalidInput)
	}

	if acct.HasSharePassword && s.SharePassword == "" &&
		o.storedSecret(acct.Origin, vault.RealmSharePassword, acct.Username) == "" {
		return fmt.Errorf("%w: share link password is required", seafile.ErrInvalidInput)
	}

	prev := o.accounts.Account(accountID)

	if err := o.storeSecrets(acct, s); err != nil {
		return err
	}

	if err := o.accounts.SetAccount(accountID, acct); err != nil {
		return err
	}

	if prev != nil && (prev.Origin != acct.Origin || prev.Username != acct.Username) &&
		!o.sharedCredentials(accountID, prev.Origin, prev.Username) {
		o.forgetSecrets(prev.Origin, prev.Username)
	}

	o.sessions.Evict(accountID)

	o.logger.Info("account saved",
		slog.String("account_id", accountID),
		slog.String("origin", acct.Origin.String()),
		slog.String("repo_id", acct.RepoID),
	)

	return nil
}

// LoadConfig returns an account's settings with its secrets, or nil when
// the account is not configured.
func (o *Orchestrator) LoadConfig(accountID string) (*Settings, error) {
	acct := o.accounts.Account(accountID)
	if acct == nil {
		return nil, nil //nolint:nilnil // nil settings means "not configured"
	}

	days := acct.ShareExpireDays

	s := &Settings{
		ServerURL:        acct.Origin.String(),
		Username:         acct.Username,
		Password:         o.storedSecret(acct.Origin, vault.RealmPassword, acct.Username),
		ContainerID:      acct.RepoID,
		ContainerName:    acct.RepoName,
		UploadPath:       acct.UploadPath,
		ShareExpireDays:  &days,
		HasSharePassword: acct.HasSharePassword,
	}

	if acct.HasSharePassword {
		s.SharePassword = o.storedSecret(acct.Origin, vault.RealmSharePassword, acct.Username)
	}

	return s, nil
}

func (o *Orchestrator) accountFromSettings(accountID string, s Settings) (config.Account, error) {
	if strings.TrimSpace(accountID) == "" {
		return config.Account{}, fmt.Errorf("%w: account id is empty", seafile.ErrInvalidInput)
	}

	org, err := origin.Normalize(s.ServerURL)
	if err != nil {
		return config.Account{}, err
	}

	username := strings.TrimSpace(s.Username)
	if username == "" {
		return config.Account{}, fmt.Errorf("%w: username is empty", seafile.ErrInvalidInput)
	}

	if strings.TrimSpace(s.ContainerID) == "" {
		return config.Account{}, fmt.Errorf("%w: no library selected", seafile.ErrInvalidInput)
	}

	days := o.DefaultExpireDays
	if s.ShareExpireDays != nil {
		days = *s.ShareExpireDays
	}

	uploadPath := ""
	if strings.TrimSpace(s.UploadPath) != "" {
		uploadPath = seafile.SanitizePath(s.UploadPath)
	}

	return config.Account{
		Origin:           org,
		Username:         username,
		RepoID:           strings.TrimSpace(s.ContainerID),
		RepoName:         s.ContainerName,
		UploadPath:       uploadPath,
		ShareExpireDays:  seafile.ClampExpireDays(days),
		HasSharePassword: s.HasSharePassword,
	}, nil
}

func (o *Orchestrator) storeSecrets(acct config.Account, s Settings) error {
	if s.Password != "" {
		if err := o.secrets.Put(acct.Origin, vault.RealmPassword, acct.Username, s.Password); err != nil {
			return err
		}

		// A token minted for another password must not outlive it.
		if _, err := o.secrets.DeleteMatching(acct.Origin, vault.RealmToken, acct.Username); err != nil {
			o.logger.Warn("clearing stale token failed", slog.String("error", err.Error()))
		}
	}

	if s.Token != "" {
		if err := o.secrets.Put(acct.Origin, vault.RealmToken, acct.Username, s.Token); err != nil {
			return err
		}
	}

	switch {
	case acct.HasSharePassword && s.SharePassword != "":
		return o.secrets.Put(acct.Origin, vault.RealmSharePassword, acct.Username, s.SharePassword)
	case !acct.HasSharePassword:
		if _, err := o.secrets.DeleteMatching(acct.Origin, vault.RealmSharePassword, acct.Username); err != nil {
			o.logger.Warn("removing share password failed", slog.String("error", err.Error()))
		}
	}

	return nil
}

// forgetSecrets best-effort removes every realm's secret for a user.
func (o *Orchestrator) forgetSecrets(org origin.Origin, username string) {
	var errs []error

	for _, realm := range vault.Realms() {
		if _, err := o.secrets.DeleteMatching(org, realm, username); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		o.logger.Warn("removing previous credentials failed",
			slog.String("origin", org.String()),
			slog.String("error", err.Error()),
		)
	}
}

// storedSecret returns username's secret for (org, realm), or "" when there
// is none or it cannot be read.
func (o *Orchestrator) storedSecret(org origin.Origin, realm vault.Realm, username string) string {
	if username == "" {
		return ""
	}

	cred, err := o.secrets.GetFor(org, realm, username)
	if err != nil {
		o.logger.Warn("reading secret failed",
			slog.String("origin", org.String()),
			slog.String("realm", realm.String()),
			slog.String("error", err.Error()),
		)

		return ""
	}

	if cred == nil {
		return ""
	}

	return cred.Secret
}
