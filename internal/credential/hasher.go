package credential

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes raw secrets with bcrypt. Every Hash call embeds a fresh salt,
// so two hashes of the same secret never compare equal; use Verify.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher using the given bcrypt cost. Out-of-range costs
// fall back to bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Cost returns the bcrypt cost used for new hashes.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns the self-describing bcrypt encoding of raw.
func (h *Hasher) Hash(raw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(raw), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(b), nil
}

// Verify reports whether raw matches hashed. The comparison is constant-time;
// malformed hashes never match.
func (h *Hasher) Verify(raw, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(raw)) == nil
}

// ValidateHash checks that hashed is a well-formed bcrypt hash, as produced by
// the keygen tool, without needing the secret.
func ValidateHash(hashed string) error {
	if _, err := bcrypt.Cost([]byte(hashed)); err != nil {
		if errors.Is(err, bcrypt.ErrHashTooShort) {
			return fmt.Errorf("invalid bcrypt hash: too short")
		}
		return fmt.Errorf("invalid bcrypt hash: %w", err)
	}
	return nil
}
