package types

import (
	"encoding/hex"

	"github.com/crytic/medusa-geth/crypto"
)

// GenerateLibraryPlaceholder creates the placeholder hash Solidity embeds in bytecode for an unlinked library: the
// first 17 bytes of the keccak256 hash of the library's fully qualified name. In bytecode it is wrapped as
// "__$<hash>$__".
func GenerateLibraryPlaceholder(fullyQualifiedName string) string {
	hash := crypto.Keccak256Hash([]byte(fullyQualifiedName))
	return hex.EncodeToString(hash.Bytes())[:34]
}
