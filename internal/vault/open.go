package vault

import (
	"fmt"
	"log/slog"

	"github.com/99designs/keyring"
)

// ServiceName is the keyring service all secrets are filed under.
const ServiceName = "seafile-filelink"

// DefaultBackends is the backend preference order when none is configured.
var DefaultBackends = []string{
	string(keyring.KeychainBackend),
	string(keyring.SecretServiceBackend),
	string(keyring.WinCredBackend),
	string(keyring.KWalletBackend),
	string(keyring.PassBackend),
	string(keyring.FileBackend),
}

// OpenOptions configures the OS credential store.
type OpenOptions struct {
	Backends       []string // preference order; empty = DefaultBackends
	FileDir        string   // directory for the encrypted file backend
	FilePassphrase string   // passphrase for the file backend
}

// Open opens the host credential store and wraps it in a Vault.
func Open(opts OpenOptions, logger *slog.Logger) (*Vault, error) {
	backends, err := parseBackends(opts.Backends)
	if err != nil {
		return nil, err
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              ServiceName,
		AllowedBackends:          backends,
		FileDir:                  opts.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(opts.FilePassphrase),
		KeychainTrustApplication: true,
		KWalletAppID:             ServiceName,
		KWalletFolder:            ServiceName,
		LibSecretCollectionName:  ServiceName,
		PassPrefix:               ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("vault: opening keyring: %w", err)
	}

	return New(ring, logger), nil
}

// ValidBackend reports whether name is a keyring backend this build knows.
func ValidBackend(name string) bool {
	for _, b := range DefaultBackends {
		if b == name {
			return true
		}
	}

	return name == string(keyring.KeyCtlBackend)
}

func parseBackends(names []string) ([]keyring.BackendType, error) {
	if len(names) == 0 {
		names = DefaultBackends
	}

	out := make([]keyring.BackendType, 0, len(names))

	for _, n := range names {
		if !ValidBackend(n) {
			return nil, fmt.Errorf("vault: unknown keyring backend %q", n)
		}

		out = append(out, keyring.BackendType(n))
	}

	return out, nil
}
