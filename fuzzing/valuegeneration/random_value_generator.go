package valuegeneration

import (
	"math/big"
	"math/rand"

	"github.com/crytic/contest/utils"
	"github.com/crytic/medusa-geth/common"
)

// RandomValueGeneratorConfig defines the size bounds and value set bias used by a RandomValueGenerator.
type RandomValueGeneratorConfig struct {
	// ArrayMinSize and ArrayMaxSize bound the length of generated dynamic arrays.
	ArrayMinSize int
	ArrayMaxSize int

	// BytesMinSize and BytesMaxSize bound the length of generated dynamic byte arrays.
	BytesMinSize int
	BytesMaxSize int

	// StringMinSize and StringMaxSize bound the length of generated strings.
	StringMinSize int
	StringMaxSize int

	// ValueSetBias describes the probability, in [0, 1], of drawing a value from the value set instead of
	// generating a fresh random one, when the set has a value of the requested kind.
	ValueSetBias float64
}

// DefaultRandomValueGeneratorConfig returns the configuration used by fuzz and invariant campaigns.
func DefaultRandomValueGeneratorConfig() *RandomValueGeneratorConfig {
	return &RandomValueGeneratorConfig{
		ArrayMinSize:  0,
		ArrayMaxSize:  16,
		BytesMinSize:  0,
		BytesMaxSize:  100,
		StringMinSize: 0,
		StringMaxSize: 100,
		ValueSetBias:  0.25,
	}
}

// RandomValueGenerator generates values using a random provider, occasionally drawing interesting values from a
// ValueSet. It is not safe for concurrent use; each worker should own one.
type RandomValueGenerator struct {
	// config describes the bounds for generated values.
	config *RandomValueGeneratorConfig

	// valueSet describes the values of significance that may be drawn instead of random values. May be nil.
	valueSet *ValueSet

	// randomProvider offers a source of random data.
	randomProvider *rand.Rand
}

// NewRandomValueGenerator creates a new RandomValueGenerator.
func NewRandomValueGenerator(config *RandomValueGeneratorConfig, valueSet *ValueSet, randomProvider *rand.Rand) *RandomValueGenerator {
	if config == nil {
		config = DefaultRandomValueGeneratorConfig()
	}
	return &RandomValueGenerator{
		config:         config,
		valueSet:       valueSet,
		randomProvider: randomProvider,
	}
}

// RandomProvider returns the internal random provider used for value generation.
func (g *RandomValueGenerator) RandomProvider() *rand.Rand {
	return g.randomProvider
}

// useValueSet decides whether the next value should be drawn from a value set list with n entries.
func (g *RandomValueGenerator) useValueSet(n int) bool {
	return n > 0 && g.randomProvider.Float64() < g.config.ValueSetBias
}

// randomLength returns a length in [min, max].
func (g *RandomValueGenerator) randomLength(min int, max int) int {
	if max <= min {
		return min
	}
	return min + g.randomProvider.Intn(max-min+1)
}

// GenerateAddress generates a random address or selects one from the value set.
func (g *RandomValueGenerator) GenerateAddress() common.Address {
	if g.valueSet != nil {
		addresses := g.valueSet.Addresses()
		if g.useValueSet(len(addresses)) {
			return addresses[g.randomProvider.Intn(len(addresses))]
		}
	}
	b := make([]byte, common.AddressLength)
	g.randomProvider.Read(b)
	return common.BytesToAddress(b)
}

// GenerateArrayOfLength generates a random dynamic array length.
func (g *RandomValueGenerator) GenerateArrayOfLength() int {
	return g.randomLength(g.config.ArrayMinSize, g.config.ArrayMaxSize)
}

// GenerateBool generates a random bool.
func (g *RandomValueGenerator) GenerateBool() bool {
	return g.randomProvider.Uint32()%2 == 0
}

// GenerateBytes generates a random dynamic-sized byte array or selects one from the value set.
func (g *RandomValueGenerator) GenerateBytes() []byte {
	if g.valueSet != nil {
		values := g.valueSet.Bytes()
		if g.useValueSet(len(values)) {
			return common.CopyBytes(values[g.randomProvider.Intn(len(values))])
		}
	}
	b := make([]byte, g.randomLength(g.config.BytesMinSize, g.config.BytesMaxSize))
	g.randomProvider.Read(b)
	return b
}

// GenerateFixedBytes generates a random fixed-sized byte array.
func (g *RandomValueGenerator) GenerateFixedBytes(length int) []byte {
	b := make([]byte, length)
	g.randomProvider.Read(b)
	return b
}

// GenerateString generates a random string or selects one from the value set.
func (g *RandomValueGenerator) GenerateString() string {
	if g.valueSet != nil {
		values := g.valueSet.Strings()
		if g.useValueSet(len(values)) {
			return values[g.randomProvider.Intn(len(values))]
		}
	}
	b := make([]byte, g.randomLength(g.config.StringMinSize, g.config.StringMaxSize))
	g.randomProvider.Read(b)
	return string(b)
}

// GenerateInteger generates a random integer of the given signedness and bit length, or selects one from the value
// set and wraps it into range.
func (g *RandomValueGenerator) GenerateInteger(signed bool, bitLength int) *big.Int {
	if g.valueSet != nil {
		values := g.valueSet.Integers()
		if g.useValueSet(len(values)) {
			return utils.ConstrainIntegerToBitLength(values[g.randomProvider.Intn(len(values))], signed, bitLength)
		}
	}

	// Bias towards the bounds of the type, which are common edge cases.
	min, max := utils.GetIntegerConstraints(signed, bitLength)
	switch g.randomProvider.Intn(16) {
	case 0:
		return min
	case 1:
		return max
	case 2:
		return big.NewInt(0)
	}

	b := make([]byte, bitLength/8)
	g.randomProvider.Read(b)
	return utils.ConstrainIntegerToBitLength(new(big.Int).SetBytes(b), signed, bitLength)
}
