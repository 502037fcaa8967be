// Package testutil holds the environment plumbing of the live-server E2E
// suite. The suite drives the built binary, so this package imports no
// internal/ code and nothing outside the standard library.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment variables read by the E2E suite.
const (
	EnvServer         = "SEAFILE_FILELINK_E2E_SERVER"
	EnvUsername       = "SEAFILE_FILELINK_E2E_USERNAME"
	EnvPassword       = "SEAFILE_FILELINK_E2E_PASSWORD"
	EnvLibrary        = "SEAFILE_FILELINK_E2E_LIBRARY"
	EnvAllowedServers = "SEAFILE_FILELINK_ALLOWED_TEST_SERVERS"
)

// Credentials identify the live account and library the suite writes to.
type Credentials struct {
	Server   string
	Username string
	Password string
	Library  string
}

// RequireCredentials reads every E2E variable and checks the server against
// the allowlist. Any gap ends the process before a test runs.
func RequireCredentials() Credentials {
	var missing []string

	get := func(name string) string {
		v := os.Getenv(name)
		if v == "" {
			missing = append(missing, name)
		}

		return v
	}

	c := Credentials{
		Server:   get(EnvServer),
		Username: get(EnvUsername),
		Password: get(EnvPassword),
		Library:  get(EnvLibrary),
	}

	if len(missing) > 0 {
		fatalf("not set: %s\nSet them in .env or the environment.", strings.Join(missing, ", "))
	}

	if !ServerAllowed(c.Server, os.Getenv(EnvAllowedServers)) {
		fatalf("%s=%q is not listed in %s=%q", EnvServer, c.Server, EnvAllowedServers, os.Getenv(EnvAllowedServers))
	}

	return c
}

// ServerAllowed reports whether server appears in the comma separated
// allowlist. Trailing slashes and surrounding spaces are ignored. An empty
// allowlist allows nothing.
func ServerAllowed(server, allowlist string) bool {
	want := strings.TrimRight(strings.TrimSpace(server), "/")
	if want == "" {
		return false
	}

	for _, entry := range strings.Split(allowlist, ",") {
		if strings.TrimRight(strings.TrimSpace(entry), "/") == want {
			return true
		}
	}

	return false
}

// LoadDotEnv copies KEY=VALUE lines from path into the environment without
// overriding variables that are already set. A missing file is ignored.
// Lines may carry an "export " prefix and quoted values.
func LoadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := parseEnvLine(scanner.Text())
		if !ok {
			continue
		}

		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, value)
		}
	}
}

func parseEnvLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}

	line = strings.TrimPrefix(line, "export ")

	key, value, ok = strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}

	key = strings.TrimSpace(key)
	value = strings.Trim(strings.TrimSpace(value), "\"'")

	return key, value, key != ""
}

// FindModuleRoot returns the nearest ancestor of the working directory that
// holds go.mod, or fallback when there is none.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for ; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		if filepath.Dir(dir) == dir {
			return fallback
		}
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FATAL: "+format+"\n", args...)
	os.Exit(1)
}
