// Package store persists the last known presence status of each identity so
// that services outside the relay can read it. Stores observe transitions;
// the relay never reads presence back from them.
package store

import (
	"strings"

	"github.com/pkg/errors"
)

// Accepted STATUS_STORE values.
const (
	KindNone  = "none"
	KindRedis = "redis"
	KindMongo = "mongo"
)

// ErrUnknownKind is returned by ParseKind for unsupported values.
var ErrUnknownKind = errors.New("unknown status store")

// ParseKind normalises a STATUS_STORE value. Empty means none.
func ParseKind(s string) (string, error) {
	switch kind := strings.ToLower(strings.TrimSpace(s)); kind {
	case "", KindNone:
		return KindNone, nil
	case KindRedis, KindMongo:
		return kind, nil
	default:
		return "", errors.Wrapf(ErrUnknownKind, "%q", s)
	}
}
