// Package origin defines the canonical identity of a Seafile server: its
// scheme, host, and port. Every credential and session in the program is
// keyed by an Origin, so this is the single place raw server URLs are parsed.
package origin

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrInvalidInput marks malformed caller input (origin, realm, path,
// username, password). Validation errors wrap it and are returned before any
// network or vault access happens.
var ErrInvalidInput = errors.New("invalid input")

// Accepted URL schemes.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// defaultPorts are dropped from the canonical form so that
// "https://host:443" and "https://host" name the same server.
var defaultPorts = map[string]string{
	SchemeHTTP:  "80",
	SchemeHTTPS: "443",
}

// Origin is a normalized "scheme://host[:port]" string with no trailing
// slash. The zero value represents an absent origin. Values are produced
// only by Normalize.
type Origin struct {
	value string
	host  string // lowercase hostname without port
}

// Normalize parses a raw server URL and returns its canonical Origin. Path,
// query, and fragment are discarded. Scheme and host are lowercased and
// default ports removed. Normalize is idempotent:
// Normalize(o.String()) == o for every accepted o.
func Normalize(raw string) (Origin, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Origin{}, fmt.Errorf("%w: server URL is empty", ErrInvalidInput)
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return Origin{}, fmt.Errorf("%w: server URL %q: %w", ErrInvalidInput, raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if _, ok := defaultPorts[scheme]; !ok {
		return Origin{}, fmt.Errorf("%w: server URL %q must use http or https", ErrInvalidInput, raw)
	}

	if u.User != nil {
		return Origin{}, fmt.Errorf("%w: server URL %q must not embed credentials", ErrInvalidInput, raw)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return Origin{}, fmt.Errorf("%w: server URL %q has no host", ErrInvalidInput, raw)
	}

	port := u.Port()
	if port == defaultPorts[scheme] {
		port = ""
	}

	hostPort := host
	if strings.Contains(host, ":") {
		// IPv6 literal.
		hostPort = "[" + host + "]"
	}

	if port != "" {
		hostPort = net.JoinHostPort(host, port)
	}

	return Origin{value: scheme + "://" + hostPort, host: host}, nil
}

// MustNormalize is like Normalize but panics on error. For tests and
// compile-time constants only.
func MustNormalize(raw string) Origin {
	o, err := Normalize(raw)
	if err != nil {
		panic(err)
	}

	return o
}

// String returns the canonical "scheme://host[:port]" form.
func (o Origin) String() string {
	return o.value
}

// Host returns the lowercase hostname without port.
func (o Origin) Host() string {
	return o.host
}

// IsZero reports whether o is the absent origin.
func (o Origin) IsZero() bool {
	return o.value == ""
}

// SameHost reports whether rawURL points at the same hostname as o. Used to
// reject upload targets that redirect outside the configured server.
func (o Origin) SameHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	return !o.IsZero() && strings.EqualFold(u.Hostname(), o.host)
}

// MarshalText implements encoding.TextMarshaler so origins round-trip
// through TOML and JSON as plain strings.
func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input yields
// the zero Origin.
func (o *Origin) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*o = Origin{}
		return nil
	}

	parsed, err := Normalize(string(text))
	if err != nil {
		return err
	}

	*o = parsed

	return nil
}
