package types

import (
	"testing"

	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// appendMetadata appends CBOR-encoded metadata with a 34 byte ipfs hash and solc version 0.8.19 to the provided
// code, followed by the two byte length suffix solc emits.
func appendMetadata(t *testing.T, code []byte, hash []byte) []byte {
	require.Len(t, hash, 34)
	encoded := []byte{0xa2, 0x64, 'i', 'p', 'f', 's', 0x58, 0x22}
	encoded = append(encoded, hash...)
	encoded = append(encoded, 0x64, 's', 'o', 'l', 'c', 0x43, 0x00, 0x08, 0x13)
	out := append(append([]byte{}, code...), encoded...)
	return append(out, byte(len(encoded)>>8), byte(len(encoded)))
}

// TestContractMetadataMatching verifies that metadata hashes decide whether deployed code matches a definition.
func TestContractMetadataMatching(t *testing.T) {
	hashA := append([]byte{0x12, 0x20}, crypto.Keccak256([]byte("A"))...)
	hashB := append([]byte{0x12, 0x20}, crypto.Keccak256([]byte("B"))...)

	runtimeA := appendMetadata(t, []byte{0x60, 0x00}, hashA)
	runtimeB := appendMetadata(t, []byte{0x60, 0x00}, hashB)

	metadata := ExtractContractMetadata(runtimeA)
	require.NotNil(t, metadata)
	assert.Equal(t, hashA, metadata.ExtractBytecodeHash())
	require.NotNil(t, metadata.CompilerVersion())
	assert.Equal(t, "0.8.19", metadata.CompilerVersion().String())

	contract := &CompiledContract{Name: "A", RuntimeBytecodeHex: common.Bytes2Hex(runtimeA)}
	assert.True(t, contract.IsMatch(runtimeA))
	assert.False(t, contract.IsMatch(runtimeB))
	assert.False(t, contract.IsMatch(nil))
}

// TestLinkLibraries verifies placeholders are replaced and unlinked bytecode cannot be decoded.
func TestLinkLibraries(t *testing.T) {
	placeholder := GenerateLibraryPlaceholder("src/Math.sol:Math")
	contract := &CompiledContract{
		Name:                "Uses",
		InitBytecodeHex:     "0x73__$" + placeholder + "$__00",
		RuntimeBytecodeHex:  "0x00",
		LibraryPlaceholders: map[string]string{placeholder: "src/Math.sol:Math"},
	}
	_, err := contract.InitBytecode()
	assert.Error(t, err)
	assert.Equal(t, []string{"src/Math.sol:Math"}, contract.Libraries())

	_, err = contract.Link(map[string]common.Address{})
	assert.Error(t, err)

	address := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	linked, err := contract.Link(map[string]common.Address{"src/Math.sol:Math": address})
	require.NoError(t, err)
	code, err := linked.InitBytecode()
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{0x73}, address.Bytes()...), 0x00), code)
	assert.Empty(t, linked.Libraries())
	// The original definition is untouched.
	assert.Len(t, contract.LibraryPlaceholders, 1)
}

// TestIsMatchUnlinked verifies definitions with library placeholders match deployed code linked to any address.
func TestIsMatchUnlinked(t *testing.T) {
	placeholder := "__$" + GenerateLibraryPlaceholder("src/Math.sol:Math") + "$__"
	library := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	deployed := append(append([]byte{0x73}, library.Bytes()...), 0x60, 0x00)

	contract := &CompiledContract{Name: "Uses", RuntimeBytecodeHex: "0x73" + placeholder + "6000"}
	assert.True(t, contract.IsMatch(deployed))
	assert.False(t, contract.IsMatch(append(append([]byte{0x73}, library.Bytes()...), 0x60, 0x01)))
	assert.False(t, contract.IsMatch(deployed[:len(deployed)-1]))

	// Metadata at the tail is still preferred when present.
	hash := append([]byte{0x12, 0x20}, crypto.Keccak256([]byte("Uses"))...)
	withMetadata := &CompiledContract{
		Name:               "Uses",
		RuntimeBytecodeHex: "0x73" + placeholder + common.Bytes2Hex(appendMetadata(t, []byte{0x60, 0x00}, hash)),
	}
	assert.True(t, withMetadata.IsMatch(appendMetadata(t, deployed, hash)))

	malformed := &CompiledContract{Name: "Broken", RuntimeBytecodeHex: "0x73__$00"}
	assert.False(t, malformed.IsMatch(deployed))
}

// TestParseCompilerVersion verifies artifact version strings are parsed and constrained.
func TestParseCompilerVersion(t *testing.T) {
	version, err := ParseCompilerVersion("0.8.19+commit.7dd6d404")
	require.NoError(t, err)
	assert.Equal(t, "0.8.19", version.String())

	ok, err := CompilerVersionSatisfies(version, ">= 0.6.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CompilerVersionSatisfies(version, "< 0.8.0")
	require.NoError(t, err)
	assert.False(t, ok)
}
