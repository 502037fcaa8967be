package config

import (
	"os"
	"strings"
)

// Environment variables consulted at startup.
const (
	EnvConfig          = "SEAFILE_FILELINK_CONFIG"
	EnvVaultPassphrase = "SEAFILE_FILELINK_VAULT_PASSPHRASE"
	EnvVaultBackends   = "SEAFILE_FILELINK_VAULT_BACKENDS"
)

// EnvOverrides holds values taken from the process environment. None of them
// is ever written back to the config file.
type EnvOverrides struct {
	ConfigPath      string
	VaultPassphrase string
	// VaultBackends replaces [vault] backends for this process only.
	VaultBackends []string
}

// ReadEnvOverrides snapshots the environment.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:      os.Getenv(EnvConfig),
		VaultPassphrase: os.Getenv(EnvVaultPassphrase),
		VaultBackends:   splitList(os.Getenv(EnvVaultBackends)),
	}
}

// Backends returns the vault backend order to open: the environment list
// when one is set, otherwise configured.
func (e EnvOverrides) Backends(configured []string) []string {
	if len(e.VaultBackends) > 0 {
		return e.VaultBackends
	}

	return configured
}

// ResolvePath picks the config file path: CLI > env > default.
func ResolvePath(env EnvOverrides, cli CLIOverrides) string {
	switch {
	case cli.ConfigPath != "":
		return cli.ConfigPath
	case env.ConfigPath != "":
		return env.ConfigPath
	default:
		return DefaultConfigPath()
	}
}

func splitList(s string) []string {
	var out []string

	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
