package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// The file holds no secrets, but account ids and server names are private
// to the user.
const (
	configFilePermissions = 0o600
	configDirPermissions  = 0o700
)

const configHeader = "# seafile-filelink configuration\n" +
	"# Accounts are written by the mail client's settings page.\n" +
	"# Passwords and tokens are kept in the OS credential store, never here.\n\n"

// Marshal renders cfg as commented TOML.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(configHeader)

	enc := toml.NewEncoder(&buf)
	enc.Indent = ""

	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}

	return buf.Bytes(), nil
}

// Save writes cfg to path atomically.
func Save(path string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	return replaceFile(path, data)
}

// replaceFile writes data next to path, flushes it to disk, and renames it
// over path. Readers and the watcher see either the old or the new file.
func replaceFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}

	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if err := f.Chmod(configFilePermissions); err != nil {
		return fmt.Errorf("setting config permissions: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing temp config: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("flushing temp config: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp config: %w", err)
	}

	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}

	return nil
}
