package randomutils

import (
	"encoding/binary"
	"math/rand"

	"github.com/crytic/medusa-geth/crypto"
)

// ForkRandomProvider creates a child random provider from the current random provider by using its random data as
// a seed. Each goroutine can then own a provider derived deterministically from a shared parent.
func ForkRandomProvider(randomProvider *rand.Rand) *rand.Rand {
	b := make([]byte, 8)
	if _, err := randomProvider.Read(b); err != nil {
		panic(err)
	}
	return rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(b))))
}

// DeriveRandomProvider creates a random provider seeded from a base seed and a label (e.g. a test signature). The
// result only depends on its inputs, so providers for parallel tests do not depend on scheduling order.
func DeriveRandomProvider(seed int64, label string) *rand.Rand {
	seedBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(seedBytes, uint64(seed))
	digest := crypto.Keccak256(seedBytes, []byte(label))
	return rand.New(rand.NewSource(int64(binary.BigEndian.Uint64(digest[:8]))))
}
