// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for seafile-filelink. The same file holds
// the global settings and the per-account non-secret settings; secrets live
// in the vault and never appear here.
package config

import (
	"time"

	"github.com/tonimelisma/seafile-filelink/internal/origin"
)

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	LogLevel string             `toml:"log_level"`
	Network  NetworkConfig      `toml:"network"`
	Vault    VaultConfig        `toml:"vault"`
	Upload   UploadConfig       `toml:"upload"`
	Accounts map[string]Account `toml:"accounts"`
}

// NetworkConfig controls HTTP client behavior. connect_timeout bounds
// metadata calls; data_timeout bounds whole uploads ("0" disables it).
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	DataTimeout    string `toml:"data_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// VaultConfig selects the OS credential store backends, in preference order.
type VaultConfig struct {
	Backends []string `toml:"backends"`
	FileDir  string   `toml:"file_dir"`
}

// UploadConfig holds defaults applied when an account leaves a field empty.
type UploadConfig struct {
	DefaultPath       string `toml:"default_path"`
	DefaultExpireDays int    `toml:"default_expire_days"`
}

// Account is the non-secret configuration of one mail account's Seafile
// target. The map key in Config.Accounts is the host's account id.
type Account struct {
	Origin           origin.Origin `toml:"origin"`
	Username         string        `toml:"username"`
	RepoID           string        `toml:"container_id"`
	RepoName         string        `toml:"container_name,omitempty"`
	UploadPath       string        `toml:"upload_path"`
	ShareExpireDays  int           `toml:"share_expire_days"`
	HasSharePassword bool          `toml:"has_share_password"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings.
type CLIOverrides struct {
	ConfigPath string // --config flag (empty = use default)
}

// Timeouts returns the parsed network timeouts. Unparseable values fall back
// to the defaults; Validate reports them.
func (n NetworkConfig) Timeouts() (connect, data time.Duration) {
	connect, err := time.ParseDuration(n.ConnectTimeout)
	if err != nil || connect <= 0 {
		connect, _ = time.ParseDuration(defaultConnectTimeout)
	}

	data, err = time.ParseDuration(n.DataTimeout)
	if err != nil || data < 0 {
		data = 0
	}

	return connect, data
}
