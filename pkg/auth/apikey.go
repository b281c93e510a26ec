package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/courseforge/courseforge/pkg/config"
)

const keyPrefixLen = 12

// GenerateKey mints a new plaintext API key of the form cs_<env>_<32-hex>.
// The plaintext is shown once at creation; callers persist only the hash and
// prefix from KeyParts.
func GenerateKey(env config.Environment) (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generating key material: %w", err)
	}

	wire := "test"
	if env == config.EnvProduction {
		wire = "live"
	}
	return fmt.Sprintf("cs_%s_%s", wire, hex.EncodeToString(buf[:])), nil
}

// HashKey computes the stored SHA-256 digest of a plaintext key. Lookup is
// hash-based so plaintext never touches the database or its logs.
func HashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// KeyParts returns the persisted representation of a plaintext key.
func KeyParts(plaintext string) (keyHash, keyPrefix string) {
	prefix := plaintext
	if len(prefix) > keyPrefixLen {
		prefix = prefix[:keyPrefixLen]
	}
	return HashKey(plaintext), prefix
}
