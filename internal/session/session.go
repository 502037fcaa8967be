package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tonimelisma/seafile-filelink/internal/config"
	"github.com/tonimelisma/seafile-filelink/internal/origin"
	"github.com/tonimelisma/seafile-filelink/internal/seafile"
	"github.com/tonimelisma/seafile-filelink/internal/vault"
)

// Sentinel errors surfaced when no strategy can produce a session.
var (
	ErrNoConfig      = errors.New("session: account not configured")
	ErrNoCredentials = errors.New("session: no stored credentials")
)

// Session is an authenticated client bound to one account.
type Session struct {
	AccountID string
	Account   config.Account // snapshot taken when the session was acquired
	Client    *seafile.Client
}

// Origin returns the server the session talks to.
func (s *Session) Origin() origin.Origin {
	return s.Account.Origin
}

// ConfigStore is the account lookup the Manager depends on.
type ConfigStore interface {
	Account(id string) *config.Account
}

// Vault is the secret storage the Manager depends on.
type Vault interface {
	GetFor(o origin.Origin, realm vault.Realm, username string) (*vault.Credential, error)
	Put(o origin.Origin, realm vault.Realm, username, secret string) error
}

// attempt carries state between the strategies of one GetSession call.
type attempt struct {
	accountID string
	acct      *config.Account
	rejected  string // token that already failed the probe in this attempt
}

// strategy is one step of session acquisition. It returns (nil, nil) to
// fall through to the next step and a non-nil error to stop the search.
type strategy struct {
	name    string
	acquire func(ctx context.Context, a *attempt) (*Session, error)
}

// Manager caches sessions by account id and acquires new ones on demand.
type Manager struct {
	configs ConfigStore
	vault   Vault
	logger  *slog.Logger

	// NewClient creates an API client for an origin. Exported for test
	// injection; set by NewManager.
	NewClient ClientFactory

	strategies []strategy

	mu    sync.Mutex
	cache map[string]*Session
}

// NewManager creates a Manager. configs, secrets and newClient are required.
func NewManager(configs ConfigStore, secrets Vault, newClient ClientFactory, logger *slog.Logger) *Manager {
	if configs == nil || secrets == nil || newClient == nil {
		panic("session: NewManager requires a config store, a vault, and a client factory")
	}

	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		configs:   configs,
		vault:     secrets,
		logger:    logger,
		NewClient: newClient,
		cache:     make(map[string]*Session),
	}

	m.strategies = []strategy{
		{name: "cache", acquire: m.fromCache},
		{name: "stored-token", acquire: m.fromStoredToken},
		{name: "password", acquire: m.fromPassword},
	}

	return m
}

// GetSession returns a live session for accountID, trying each acquisition
// strategy in order. It fails with ErrNoConfig when the account is not
// configured and with ErrNoCredentials when every strategy is exhausted.
func (m *Manager) GetSession(ctx context.Context, accountID string) (*Session, error) {
	acct := m.configs.Account(accountID)
	if acct == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoConfig, accountID)
	}

	a := &attempt{accountID: accountID, acct: acct}

	for _, st := range m.strategies {
		s, err := st.acquire(ctx, a)
		if err != nil {
			m.logger.Debug("session acquisition failed",
				slog.String("account_id", accountID),
				slog.String("strategy", st.name),
				slog.String("error", err.Error()),
			)

			return nil, err
		}

		if s != nil {
			m.logger.Debug("session acquired",
				slog.String("account_id", accountID),
				slog.String("strategy", st.name),
				slog.String("origin", acct.Origin.String()),
			)

			return s, nil
		}
	}

	return nil, fmt.Errorf("%w for %s", ErrNoCredentials, acct.Origin)
}

// Evict drops the cached session for accountID, if any.
func (m *Manager) Evict(accountID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cache, accountID)
}

// Cached reports whether a session for accountID is in the cache. The
// session is not probed.
func (m *Manager) Cached(accountID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.cache[accountID]

	return ok
}

func (m *Manager) fromCache(ctx context.Context, a *attempt) (*Session, error) {
	accountID, acct := a.accountID, a.acct

	m.mu.Lock()
	s, ok := m.cache[accountID]
	m.mu.Unlock()

	if !ok {
		return nil, nil
	}

	// The account was re-pointed at another server or user since caching.
	if s.Account.Origin != acct.Origin || s.Account.Username != acct.Username {
		m.Evict(accountID)

		return nil, nil
	}

	if !s.Client.Ping(ctx) {
		m.logger.Info("cached session expired", slog.String("account_id", accountID))
		m.Evict(accountID)
		a.rejected = s.Client.Token()

		return nil, nil
	}

	// Refresh the config snapshot so changed upload settings take effect.
	fresh := *s
	fresh.Account = *acct
	m.store(accountID, &fresh)

	return &fresh, nil
}

func (m *Manager) fromStoredToken(ctx context.Context, a *attempt) (*Session, error) {
	accountID, acct := a.accountID, a.acct

	cred, err := m.vault.GetFor(acct.Origin, vault.RealmToken, acct.Username)
	if err != nil {
		m.logger.Warn("reading stored token failed",
			slog.String("origin", acct.Origin.String()),
			slog.String("error", err.Error()),
		)

		return nil, nil
	}

	if cred == nil || cred.Secret == "" || cred.Secret == a.rejected {
		return nil, nil
	}

	client := m.NewClient(acct.Origin)
	client.SetToken(cred.Secret)

	if !client.Ping(ctx) {
		m.logger.Info("stored token rejected", slog.String("origin", acct.Origin.String()))

		return nil, nil
	}

	s := &Session{AccountID: accountID, Account: *acct, Client: client}
	m.store(accountID, s)

	return s, nil
}

func (m *Manager) fromPassword(ctx context.Context, a *attempt) (*Session, error) {
	accountID, acct := a.accountID, a.acct

	cred, err := m.vault.GetFor(acct.Origin, vault.RealmPassword, acct.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: reading password: %w", ErrNoCredentials, err)
	}

	if cred == nil || cred.Secret == "" {
		return nil, fmt.Errorf("%w for %s", ErrNoCredentials, acct.Origin)
	}

	client := m.NewClient(acct.Origin)

	token, err := client.Authenticate(ctx, acct.Username, cred.Secret, "")
	if err != nil {
		return nil, fmt.Errorf("re-authenticating %s: %w", acct.Origin, err)
	}

	if err := m.vault.Put(acct.Origin, vault.RealmToken, acct.Username, token); err != nil {
		m.logger.Warn("persisting token failed",
			slog.String("origin", acct.Origin.String()),
			slog.String("error", err.Error()),
		)
	}

	s := &Session{AccountID: accountID, Account: *acct, Client: client}
	m.store(accountID, s)

	m.logger.Info("re-authenticated", slog.String("account_id", accountID), slog.String("origin", acct.Origin.String()))

	return s, nil
}

func (m *Manager) store(accountID string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache[accountID] = s
}
