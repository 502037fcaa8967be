// Package vault stores Seafile secrets in the host's credential store
// through github.com/99designs/keyring. Secrets are addressed by
// (origin, realm, username); every call validates the origin and realm
// before the backend is touched.
package vault

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/99designs/keyring"

	"github.com/tonimelisma/seafile-filelink/internal/origin"
)

// keySep separates origin, realm, and escaped username in backend keys.
// Origins and realms never contain it and usernames are query-escaped.
const keySep = "|"

// Credential is a secret read back from the vault.
type Credential struct {
	Username string
	Secret   string
}

// Vault is the secret store adapter. Safe for concurrent use to the extent
// the underlying keyring is.
type Vault struct {
	ring   keyring.Keyring
	logger *slog.Logger
}

// New wraps an opened keyring.
func New(ring keyring.Keyring, logger *slog.Logger) *Vault {
	if ring == nil {
		panic("vault: New called with nil keyring")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Vault{ring: ring, logger: logger}
}

// Put stores secret under (o, realm, username), replacing any previous
// value.
func (v *Vault) Put(o origin.Origin, realm Realm, username, secret string) error {
	if err := validate(o, realm); err != nil {
		return err
	}

	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("%w: username is empty", origin.ErrInvalidInput)
	}

	if secret == "" {
		return fmt.Errorf("%w: %s secret is empty", origin.ErrInvalidInput, realm)
	}

	err := v.ring.Set(keyring.Item{
		Key:         itemKey(o, realm, username),
		Data:        []byte(secret),
		Label:       fmt.Sprintf("Seafile %s for %s@%s", realm, username, o.Host()),
		Description: "seafile-filelink " + realm.String(),
	})
	if err != nil {
		return fmt.Errorf("vault: storing %s for %s: %w", realm, o, err)
	}

	v.logger.Debug("stored secret",
		slog.String("origin", o.String()),
		slog.String("realm", realm.String()),
		slog.String("username", username),
	)

	return nil
}

// Get returns the secret stored for (o, realm). When several usernames have
// a secret in the realm the lexically first is returned. Returns nil, nil
// when nothing is stored.
func (v *Vault) Get(o origin.Origin, realm Realm) (*Credential, error) {
	return v.get(o, realm, "")
}

// GetFor returns the secret username stored for (o, realm), or nil, nil
// when that user has none. Secrets of other users on the same origin are
// never returned.
func (v *Vault) GetFor(o origin.Origin, realm Realm, username string) (*Credential, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is empty", origin.ErrInvalidInput)
	}

	return v.get(o, realm, username)
}

func (v *Vault) get(o origin.Origin, realm Realm, username string) (*Credential, error) {
	matches, err := v.match(o, realm, username)
	if err != nil {
		return nil, err
	}

	for _, m := range matches {
		item, getErr := v.ring.Get(m.key)
		if errors.Is(getErr, keyring.ErrKeyNotFound) {
			continue
		}

		if getErr != nil {
			return nil, fmt.Errorf("vault: reading %s for %s: %w", realm, o, getErr)
		}

		return &Credential{Username: m.username, Secret: string(item.Data)}, nil
	}

	return nil, nil //nolint:nilnil // nil credential means "not stored"
}

// DeleteMatching removes secrets in (o, realm). A non-empty username limits
// removal to that user. Returns the number of secrets removed.
func (v *Vault) DeleteMatching(o origin.Origin, realm Realm, username string) (int, error) {
	matches, err := v.match(o, realm, username)
	if err != nil {
		return 0, err
	}

	return v.remove(matches)
}

// DeleteAll removes every secret of every realm for o.
func (v *Vault) DeleteAll(o origin.Origin) (int, error) {
	if o.IsZero() {
		return 0, fmt.Errorf("%w: origin is empty", origin.ErrInvalidInput)
	}

	total := 0

	var errs []error

	for _, realm := range Realms() {
		n, err := v.DeleteMatching(o, realm, "")
		total += n

		if err != nil {
			errs = append(errs, err)
		}
	}

	return total, errors.Join(errs...)
}

type keyMatch struct {
	key      string
	username string
}

// match lists backend keys in (o, realm), optionally for one username,
// sorted by username.
func (v *Vault) match(o origin.Origin, realm Realm, username string) ([]keyMatch, error) {
	if err := validate(o, realm); err != nil {
		return nil, err
	}

	keys, err := v.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("vault: listing keys: %w", err)
	}

	prefix := o.String() + keySep + realm.String() + keySep

	var out []keyMatch

	for _, k := range keys {
		escaped, ok := strings.CutPrefix(k, prefix)
		if !ok {
			continue
		}

		user, unescErr := url.QueryUnescape(escaped)
		if unescErr != nil {
			continue
		}

		if username != "" && user != username {
			continue
		}

		out = append(out, keyMatch{key: k, username: user})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].username < out[j].username })

	return out, nil
}

// remove deletes the given keys, continuing past individual failures.
func (v *Vault) remove(matches []keyMatch) (int, error) {
	removed := 0

	var errs []error

	for _, m := range matches {
		err := v.ring.Remove(m.key)
		if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			errs = append(errs, fmt.Errorf("vault: removing secret: %w", err))
			continue
		}

		if err == nil {
			removed++
		}
	}

	if removed > 0 {
		v.logger.Debug("removed secrets", slog.Int("count", removed))
	}

	return removed, errors.Join(errs...)
}

func validate(o origin.Origin, realm Realm) error {
	if o.IsZero() {
		return fmt.Errorf("%w: origin is empty", origin.ErrInvalidInput)
	}

	return realm.Validate()
}

func itemKey(o origin.Origin, realm Realm, username string) string {
	return o.String() + keySep + realm.String() + keySep + url.QueryEscape(username)
}
