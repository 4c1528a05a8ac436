package assembly

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// Random is the source of randomness used by the assembler. *rand.Rand from
// math/rand/v2 satisfies it.
type Random interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

// NewSecureRandom returns a Random backed by the operating system's
// cryptographically secure generator.
func NewSecureRandom() *rand.Rand {
	return rand.New(cryptoSource{})
}

type cryptoSource struct{}

func (cryptoSource) Uint64() uint64 {
	var b [8]byte
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = crand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}
