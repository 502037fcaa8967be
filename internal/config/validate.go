package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tonimelisma/seafile-filelink/internal/seafile"
	"github.com/tonimelisma/seafile-filelink/internal/vault"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks all configuration values and returns every problem found,
// joined into one error so the user can fix them in a single pass.
func Validate(cfg *Config) error {
	var errs []error

	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", cfg.LogLevel))
	}

	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateVault(&cfg.Vault)...)
	errs = append(errs, validateUpload(&cfg.Upload)...)

	ids := make([]string, 0, len(cfg.Accounts))
	for id := range cfg.Accounts {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	for _, id := range ids {
		errs = append(errs, ValidateAccount(id, cfg.Accounts[id])...)
	}

	return errors.Join(errs...)
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	if d, err := time.ParseDuration(n.ConnectTimeout); err != nil {
		errs = append(errs, fmt.Errorf("network.connect_timeout: invalid duration %q", n.ConnectTimeout))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("network.connect_timeout: must be positive"))
	}

	if d, err := time.ParseDuration(n.DataTimeout); err != nil {
		errs = append(errs, fmt.Errorf("network.data_timeout: invalid duration %q", n.DataTimeout))
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("network.data_timeout: must not be negative"))
	}

	return errs
}

func validateVault(v *VaultConfig) []error {
	var errs []error

	for _, b := range v.Backends {
		if !vault.ValidBackend(b) {
			errs = append(errs, fmt.Errorf("vault.backends: unknown backend %q", b))
		}
	}

	return errs
}

func validateUpload(u *UploadConfig) []error {
	var errs []error

	if u.DefaultExpireDays < 0 || u.DefaultExpireDays > seafile.MaxExpireDays {
		errs = append(errs, fmt.Errorf("upload.default_expire_days: must be between 0 and %d", seafile.MaxExpireDays))
	}

	return errs
}

// ValidateAccount checks one account section. It is also used before
// saving so an invalid account never reaches the file.
func ValidateAccount(id string, a Account) []error {
	var errs []error

	prefix := fmt.Sprintf("accounts.%q", id)

	if strings.TrimSpace(id) == "" {
		errs = append(errs, errors.New("accounts: account id must not be empty"))
	}

	if a.Origin.IsZero() {
		errs = append(errs, fmt.Errorf("%s.origin: must not be empty", prefix))
	}

	if strings.TrimSpace(a.Username) == "" {
		errs = append(errs, fmt.Errorf("%s.username: must not be empty", prefix))
	}

	if strings.TrimSpace(a.RepoID) == "" {
		errs = append(errs, fmt.Errorf("%s.container_id: must not be empty", prefix))
	}

	if a.ShareExpireDays < 0 || a.ShareExpireDays > seafile.MaxExpireDays {
		errs = append(errs, fmt.Errorf("%s.share_expire_days: must be between 0 and %d", prefix, seafile.MaxExpireDays))
	}

	return errs
}
