package config

// Default values for configuration options.
const (
	defaultLogLevel       = "info"
	defaultConnectTimeout = "30s"
	defaultDataTimeout    = "0"
	defaultUploadPath     = "/Thunderbird-Attachments"
	defaultExpireDays     = 0
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: defaultLogLevel,
		Network: NetworkConfig{
			ConnectTimeout: defaultConnectTimeout,
			DataTimeout:    defaultDataTimeout,
		},
		Upload: UploadConfig{
			DefaultPath:       defaultUploadPath,
			DefaultExpireDays: defaultExpireDays,
		},
		Accounts: make(map[string]Account),
	}
}

// withDefaults fills an empty upload path from the global upload defaults.
// ShareExpireDays is left alone: zero is a real setting ("never expires").
func (c *Config) withDefaults(a Account) Account {
	if a.UploadPath == "" {
		a.UploadPath = c.Upload.DefaultPath
	}

	return a
}
