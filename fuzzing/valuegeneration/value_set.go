package valuegeneration

import (
	"bytes"
	"encoding/hex"
	"hash"
	"math/big"

	"github.com/crytic/medusa-geth/common"
	"golang.org/x/crypto/sha3"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ValueSet represents potential values of significance to be used in fuzz tests. Listings are returned in a sorted
// order so generators seeded identically draw identical values.
type ValueSet struct {
	// addresses represents a set of common.Address to use in fuzz tests. A mapping is used to avoid duplicates.
	addresses map[common.Address]any
	// integers represents a set of integers to use in fuzz tests, keyed by their decimal representation.
	integers map[string]*big.Int
	// strings represents a set of strings to use in fuzz tests.
	strings map[string]any
	// bytes represents a set of byte sequences to use in fuzz tests, keyed by their hash.
	bytes map[string][]byte
	// hashProvider represents a hash provider used to create keys for byte sequences.
	hashProvider hash.Hash
}

// NewValueSet initializes a new, empty ValueSet.
func NewValueSet() *ValueSet {
	return &ValueSet{
		addresses:    make(map[common.Address]any),
		integers:     make(map[string]*big.Int),
		strings:      make(map[string]any),
		bytes:        make(map[string][]byte),
		hashProvider: sha3.NewLegacyKeccak256(),
	}
}

// Clone creates a copy of the current ValueSet.
func (vs *ValueSet) Clone() *ValueSet {
	return &ValueSet{
		addresses:    maps.Clone(vs.addresses),
		integers:     maps.Clone(vs.integers),
		strings:      maps.Clone(vs.strings),
		bytes:        maps.Clone(vs.bytes),
		hashProvider: sha3.NewLegacyKeccak256(),
	}
}

// Addresses returns the addresses contained within the set, sorted.
func (vs *ValueSet) Addresses() []common.Address {
	res := make([]common.Address, 0, len(vs.addresses))
	for k := range vs.addresses {
		res = append(res, k)
	}
	slices.SortFunc(res, func(a, b common.Address) int {
		return bytes.Compare(a.Bytes(), b.Bytes())
	})
	return res
}

// AddAddress adds an address item to the ValueSet.
func (vs *ValueSet) AddAddress(a common.Address) {
	vs.addresses[a] = nil
}

// RemoveAddress removes an address item from the ValueSet.
func (vs *ValueSet) RemoveAddress(a common.Address) {
	delete(vs.addresses, a)
}

// Integers returns the integers contained within the set, sorted ascending.
func (vs *ValueSet) Integers() []*big.Int {
	res := make([]*big.Int, 0, len(vs.integers))
	for _, v := range vs.integers {
		res = append(res, v)
	}
	slices.SortFunc(res, func(a, b *big.Int) int {
		return a.Cmp(b)
	})
	return res
}

// AddInteger adds an integer item to the ValueSet.
func (vs *ValueSet) AddInteger(b *big.Int) {
	vs.integers[b.String()] = new(big.Int).Set(b)
}

// RemoveInteger removes an integer item from the ValueSet.
func (vs *ValueSet) RemoveInteger(b *big.Int) {
	delete(vs.integers, b.String())
}

// Strings returns the strings contained within the set, sorted.
func (vs *ValueSet) Strings() []string {
	res := make([]string, 0, len(vs.strings))
	for k := range vs.strings {
		res = append(res, k)
	}
	slices.Sort(res)
	return res
}

// AddString adds a string item to the ValueSet.
func (vs *ValueSet) AddString(s string) {
	vs.strings[s] = nil
}

// RemoveString removes a string item from the ValueSet.
func (vs *ValueSet) RemoveString(s string) {
	delete(vs.strings, s)
}

// Bytes returns the byte sequences contained within the set, sorted by their hash.
func (vs *ValueSet) Bytes() [][]byte {
	keys := make([]string, 0, len(vs.bytes))
	for k := range vs.bytes {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	res := make([][]byte, len(keys))
	for i, k := range keys {
		res[i] = vs.bytes[k]
	}
	return res
}

// AddBytes adds a byte sequence to the ValueSet.
func (vs *ValueSet) AddBytes(b []byte) {
	vs.bytes[vs.bytesKey(b)] = common.CopyBytes(b)
}

// RemoveBytes removes a byte sequence item from the ValueSet.
func (vs *ValueSet) RemoveBytes(b []byte) {
	delete(vs.bytes, vs.bytesKey(b))
}

// bytesKey hashes a byte sequence into its set key.
func (vs *ValueSet) bytesKey(b []byte) string {
	vs.hashProvider.Reset()
	vs.hashProvider.Write(b)
	return hex.EncodeToString(vs.hashProvider.Sum(nil))
}

// Len returns the total number of values held by the set.
func (vs *ValueSet) Len() int {
	return len(vs.addresses) + len(vs.integers) + len(vs.strings) + len(vs.bytes)
}
