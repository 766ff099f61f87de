package engine

import (
	crand "crypto/rand"
	"fmt"
	"math/rand/v2"
)

// NewRand returns a PRNG seeded from crypto/rand, for shuffles and turn picks.
func NewRand() (*rand.Rand, error) {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("read random seed: %w", err)
	}
	return rand.New(rand.NewChaCha8(seed)), nil
}
