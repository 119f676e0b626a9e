// Package commitment builds, stores and recovers the secrets behind
// commit-reveal votes.
package commitment

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/alanyoungcy/ppmclient/internal/domain"
)

// SecretLen is the secret size in bytes.
const SecretLen = 32

// Secret is the salt mixed into a vote commitment.
type Secret [SecretLen]byte

// randReader is swapped in tests to simulate an unavailable entropy source.
var randReader io.Reader = rand.Reader

// GenerateSecret draws a fresh secret from the operating system's secure
// random source. There is no fallback: if the source fails, so does this.
func GenerateSecret() (Secret, error) {
	var s Secret
	if _, err := io.ReadFull(randReader, s[:]); err != nil {
		return Secret{}, fmt.Errorf("commitment: secure random source unavailable: %w", err)
	}
	return s, nil
}

// ParseSecret parses "0x" followed by exactly 64 hex characters. Both the
// prefix and the digits are case-insensitive.
func ParseSecret(s string) (Secret, error) {
	s = strings.TrimSpace(s)
	if len(s) != 2+2*SecretLen || (s[:2] != "0x" && s[:2] != "0X") {
		return Secret{}, fmt.Errorf("%w: want 0x followed by %d hex characters", domain.ErrInvalidSecret, 2*SecretLen)
	}
	var out Secret
	if _, err := hex.Decode(out[:], []byte(s[2:])); err != nil {
		return Secret{}, fmt.Errorf("%w: %v", domain.ErrInvalidSecret, err)
	}
	return out, nil
}

// String returns the lowercase "0x"-prefixed hex form.
func (s Secret) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// IsZero reports whether s is all zero bytes.
func (s Secret) IsZero() bool {
	return s == Secret{}
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Secret) UnmarshalText(text []byte) error {
	parsed, err := ParseSecret(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
