package vault

import (
	"fmt"

	"github.com/tonimelisma/seafile-filelink/internal/origin"
)

// Realm partitions the secret namespace of one origin by purpose.
type Realm string

// The three realms. No other value is ever written to or read from the
// backend.
const (
	RealmPassword      Realm = "password"
	RealmToken         Realm = "token"
	RealmSharePassword Realm = "share-password"
)

// Realms returns all valid realms in a fixed order.
func Realms() []Realm {
	return []Realm{RealmPassword, RealmToken, RealmSharePassword}
}

// ParseRealm validates a raw realm tag.
func ParseRealm(s string) (Realm, error) {
	r := Realm(s)
	if err := r.Validate(); err != nil {
		return "", err
	}

	return r, nil
}

// Validate returns an ErrInvalidInput-wrapped error for unknown realms.
func (r Realm) Validate() error {
	switch r {
	case RealmPassword, RealmToken, RealmSharePassword:
		return nil
	default:
		return fmt.Errorf("%w: unknown realm %q", origin.ErrInvalidInput, string(r))
	}
}

func (r Realm) String() string {
	return string(r)
}
