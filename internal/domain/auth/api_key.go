package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/alexedwards/argon2id"
)

// ErrInvalidKey is returned when an API key matches no configured
// identity.
var ErrInvalidKey = errors.New("invalid api key")

// storedKey is one configured API key.
type storedKey struct {
	identity Identity
	hash     string
}

// Keyring validates raw API keys against configured hashes. Hashes are
// either argon2id strings ("$argon2id$...") or hex SHA-256 digests for
// keys seeded by tooling. The keyring is immutable after construction
// and safe for concurrent use.
type Keyring struct {
	// sha256Index gives O(1) lookup for SHA-256 hashed keys.
	sha256Index map[string]*storedKey
	// argonKeys are verified by iteration; argon2id hashes are salted so
	// no index is possible.
	argonKeys []*storedKey
}

// NewKeyring builds a keyring from (name, hash) pairs.
func NewKeyring(keys map[string]string) *Keyring {
	k := &Keyring{sha256Index: make(map[string]*storedKey)}
	for name, hash := range keys {
		sk := &storedKey{identity: Identity{Name: name}, hash: hash}
		if strings.HasPrefix(hash, "$argon2id$") {
			k.argonKeys = append(k.argonKeys, sk)
		} else {
			k.sha256Index[strings.ToLower(hash)] = sk
		}
	}
	return k
}

// Empty reports whether no keys are configured; the API then runs
// unauthenticated (development mode).
func (k *Keyring) Empty() bool {
	return len(k.sha256Index) == 0 && len(k.argonKeys) == 0
}

// Validate checks a raw API key and returns the associated identity.
// Returns ErrInvalidKey when no configured key matches.
func (k *Keyring) Validate(rawKey string) (*Identity, error) {
	// Fast path: direct SHA-256 lookup, constant-time on the digest.
	digest := HashKey(rawKey)
	if sk, ok := k.sha256Index[digest]; ok {
		if subtle.ConstantTimeCompare([]byte(digest), []byte(strings.ToLower(sk.hash))) == 1 {
			id := sk.identity
			return &id, nil
		}
	}

	// Argon2id keys are salted; verify each in turn.
	for _, sk := range k.argonKeys {
		match, err := argon2id.ComparePasswordAndHash(rawKey, sk.hash)
		if err != nil {
			continue
		}
		if match {
			id := sk.identity
			return &id, nil
		}
	}
	return nil, ErrInvalidKey
}

// HashKey returns the hex SHA-256 digest of a raw API key, the format
// used for seeded key hashes.
func HashKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// HashKeyArgon2 returns an argon2id hash of a raw API key, for generating
// config entries.
func HashKeyArgon2(rawKey string) (string, error) {
	return argon2id.CreateHash(rawKey, argon2id.DefaultParams)
}
