package config

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
)

// Store reads and writes account sections through a Holder. Every write
// re-encodes the whole file atomically and then publishes the new snapshot,
// so readers never observe a half-applied change.
type Store struct {
	holder *Holder
	logger *slog.Logger

	// OnReload, when set, is called after Reload publishes a snapshot read
	// from disk, with the ids of accounts that were added, changed or
	// removed. Set it before Watch starts.
	OnReload func(changed []string)
}

// NewStore wraps a Holder. The holder's path is where changes are saved.
func NewStore(holder *Holder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{holder: holder, logger: logger}
}

// Holder returns the underlying config holder.
func (s *Store) Holder() *Holder {
	return s.holder
}

// Account returns the account with upload defaults filled in, or nil when
// no account with that id is configured.
func (s *Store) Account(id string) *Account {
	cfg := s.holder.Config()

	a, ok := cfg.Accounts[id]
	if !ok {
		return nil
	}

	a = cfg.withDefaults(a)

	return &a
}

// AccountIDs returns the configured account ids in sorted order.
func (s *Store) AccountIDs() []string {
	return slices.Sorted(maps.Keys(s.holder.Config().Accounts))
}

// SetAccount validates and stores an account, replacing any previous one
// under the same id.
func (s *Store) SetAccount(id string, a Account) error {
	if errs := ValidateAccount(id, a); len(errs) > 0 {
		return fmt.Errorf("invalid account: %w", errors.Join(errs...))
	}

	return s.update(func(cfg *Config) bool {
		cfg.Accounts[id] = a

		return true
	})
}

// RemoveAccount deletes an account section. It reports whether the account
// existed; removing a missing account is not an error.
func (s *Store) RemoveAccount(id string) (bool, error) {
	removed := false

	err := s.update(func(cfg *Config) bool {
		if _, ok := cfg.Accounts[id]; !ok {
			return false
		}

		delete(cfg.Accounts, id)
		removed = true

		return true
	})

	return removed, err
}

// Reload re-reads the config file and publishes it. An invalid file leaves
// the current snapshot in place.
func (s *Store) Reload() error {
	cfg, err := LoadOrDefault(s.holder.Path())
	if err != nil {
		return err
	}

	prev := s.holder.Update(cfg)
	changed := changedAccounts(prev, cfg)

	s.logger.Info("config reloaded",
		slog.String("path", s.holder.Path()),
		slog.Int("accounts", len(cfg.Accounts)),
		slog.Int("changed", len(changed)),
		slog.Uint64("generation", s.holder.Generation()),
	)

	if s.OnReload != nil && len(changed) > 0 {
		s.OnReload(changed)
	}

	return nil
}

// changedAccounts returns the sorted ids whose sections differ between two
// snapshots, including ids present in only one of them.
func changedAccounts(prev, next *Config) []string {
	var changed []string

	for id, a := range next.Accounts {
		if old, ok := prev.Accounts[id]; !ok || old != a {
			changed = append(changed, id)
		}
	}

	for id := range prev.Accounts {
		if _, ok := next.Accounts[id]; !ok {
			changed = append(changed, id)
		}
	}

	slices.Sort(changed)

	return changed
}

// update applies mutate to a copy of the current config and saves it. The
// holder's write lock is not held across the file write; the store lock
// serializes writers instead.
func (s *Store) update(mutate func(cfg *Config) bool) error {
	s.holder.writeMu.Lock()
	defer s.holder.writeMu.Unlock()

	next := s.holder.Config().clone()
	if !mutate(next) {
		return nil
	}

	if err := Save(s.holder.Path(), next); err != nil {
		return err
	}

	s.holder.Update(next)

	return nil
}

// clone returns a copy of c whose Accounts map may be mutated freely.
func (c *Config) clone() *Config {
	out := *c
	out.Vault.Backends = slices.Clone(c.Vault.Backends)
	out.Accounts = maps.Clone(c.Accounts)

	if out.Accounts == nil {
		out.Accounts = make(map[string]Account)
	}

	return &out
}
