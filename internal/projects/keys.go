package projects

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultKeyPrefix starts every generated key unless configured otherwise.
const DefaultKeyPrefix = "fw_"

const (
	keyEntropyBytes  = 32
	displayPrefixLen = 8
)

// KeyService generates and verifies project API keys.
type KeyService struct {
	prefix string
	cost   int
}

// NewKeyService creates a KeyService. An empty prefix means DefaultKeyPrefix.
func NewKeyService(prefix string) *KeyService {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &KeyService{prefix: prefix, cost: bcrypt.DefaultCost}
}

// WithCost returns a copy hashing at the given bcrypt cost.
func (k *KeyService) WithCost(cost int) *KeyService {
	c := *k
	c.cost = cost
	return &c
}

// Generate returns a new raw key, its bcrypt hash and its display prefix.
// The raw key is prefix + base64url(32 random bytes) without padding.
func (k *KeyService) Generate() (rawKey, hash, keyPrefix string, err error) {
	buf := make([]byte, keyEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", "", fmt.Errorf("generate key: %w", err)
	}
	rawKey = k.prefix + base64.RawURLEncoding.EncodeToString(buf)

	hashed, err := bcrypt.GenerateFromPassword([]byte(rawKey), k.cost)
	if err != nil {
		return "", "", "", fmt.Errorf("hash key: %w", err)
	}

	keyPrefix = rawKey
	if len(keyPrefix) > displayPrefixLen {
		keyPrefix = keyPrefix[:displayPrefixLen]
	}
	return rawKey, string(hashed), keyPrefix, nil
}

// Verify reports whether rawKey matches hash. Malformed hashes never match.
func (k *KeyService) Verify(rawKey, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawKey)) == nil
}
