package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	"golang.org/x/exp/slices"
)

// CompiledContract represents a single contract unit from a smart contract compilation.
type CompiledContract struct {
	// Name describes the contract's name, e.g. "Counter".
	Name string

	// SourcePath describes the path of the source file the contract was declared in, e.g. "src/Counter.sol".
	SourcePath string

	// Abi describes a contract's application binary interface, a structure used to describe information needed
	// to interact with the contract such as constructor and function definitions with input/output variable
	// information, event declarations, and fallback and receive methods.
	Abi abi.ABI

	// InitBytecodeHex describes the hex-encoded bytecode used to deploy a contract. It may still contain library
	// placeholders, which makes it undecodable until linked.
	InitBytecodeHex string

	// RuntimeBytecodeHex represents the hex-encoded bytecode to be expected once the contract has been successfully
	// deployed. This may differ at runtime based on constructor arguments, immutables, linked libraries, etc.
	RuntimeBytecodeHex string

	// LibraryPlaceholders maps placeholder hashes found in the bytecode to the fully qualified name of the library
	// they refer to.
	LibraryPlaceholders map[string]string

	// CompilerVersion describes the compiler version reported by the artifact, if any.
	CompilerVersion string
}

// FullyQualifiedName returns the "<source path>:<name>" identifier of the contract.
func (c *CompiledContract) FullyQualifiedName() string {
	if c.SourcePath == "" {
		return c.Name
	}
	return c.SourcePath + ":" + c.Name
}

// IsLibrary indicates whether the contract is a library, judged by the PUSH20 address guard Solidity places at the
// start of library runtime code.
func (c *CompiledContract) IsLibrary() bool {
	runtime := strings.ToLower(c.RuntimeBytecodeHex)
	if !strings.HasPrefix(runtime, "0x") {
		runtime = "0x" + runtime
	}
	return strings.HasPrefix(runtime, LibraryIndicator)
}

// IsDeployable indicates whether the contract has init bytecode, i.e. it is not an interface or abstract contract.
func (c *CompiledContract) IsDeployable() bool {
	return len(strings.TrimPrefix(c.InitBytecodeHex, "0x")) > 0
}

// InitBytecode decodes the init bytecode. Returns an error if the bytecode still requires library linking.
func (c *CompiledContract) InitBytecode() ([]byte, error) {
	return decodeBytecode(c.Name, c.InitBytecodeHex)
}

// RuntimeBytecode decodes the runtime bytecode. Returns an error if the bytecode still requires library linking.
func (c *CompiledContract) RuntimeBytecode() ([]byte, error) {
	return decodeBytecode(c.Name, c.RuntimeBytecodeHex)
}

// decodeBytecode decodes a hex bytecode string, reporting unlinked library placeholders explicitly.
func decodeBytecode(name string, bytecodeHex string) ([]byte, error) {
	trimmed := strings.TrimPrefix(bytecodeHex, "0x")
	if strings.Contains(trimmed, "__") {
		return nil, fmt.Errorf("bytecode for contract %s has unlinked library references", name)
	}
	b, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("could not decode bytecode for contract %s: %w", name, err)
	}
	return b, nil
}

// Libraries returns the fully qualified names of the libraries this contract links against, sorted.
func (c *CompiledContract) Libraries() []string {
	libraries := make([]string, 0, len(c.LibraryPlaceholders))
	for _, library := range c.LibraryPlaceholders {
		if !slices.Contains(libraries, library) {
			libraries = append(libraries, library)
		}
	}
	slices.Sort(libraries)
	return libraries
}

// Link returns a copy of this contract with every library placeholder replaced by the address of the deployed
// library. Returns an error if an address is missing for a required library.
func (c *CompiledContract) Link(deployedLibraries map[string]common.Address) (*CompiledContract, error) {
	linked := *c
	linked.LibraryPlaceholders = make(map[string]string)
	for placeholder, library := range c.LibraryPlaceholders {
		address, ok := deployedLibraries[library]
		if !ok {
			return nil, fmt.Errorf("could not link contract %s: no address for library %s", c.Name, library)
		}
		pattern := fmt.Sprintf("__$%s$__", placeholder)
		addressHex := hex.EncodeToString(address.Bytes())
		linked.InitBytecodeHex = strings.ReplaceAll(linked.InitBytecodeHex, pattern, addressHex)
		linked.RuntimeBytecodeHex = strings.ReplaceAll(linked.RuntimeBytecodeHex, pattern, addressHex)
	}
	return &linked, nil
}

// IsMatch returns a boolean indicating whether the provided deployed runtime bytecode belongs to this compiled
// contract definition. Definitions which still contain library placeholders are compared with the placeholder spans
// masked out of both bytecodes.
func (c *CompiledContract) IsMatch(runtimeBytecode []byte) bool {
	definitionBytecode, placeholders, err := c.maskedRuntimeBytecode()
	if err != nil || len(runtimeBytecode) == 0 || len(definitionBytecode) == 0 {
		return false
	}

	// Runtime bytecode metadata is preferred, since init bytecode can have matching metadata hashes for different
	// contracts.
	deploymentMetadata := ExtractContractMetadata(runtimeBytecode)
	definitionMetadata := ExtractContractMetadata(definitionBytecode)
	if deploymentMetadata != nil && definitionMetadata != nil {
		deploymentHash := deploymentMetadata.ExtractBytecodeHash()
		definitionHash := definitionMetadata.ExtractBytecodeHash()
		if deploymentHash != nil && definitionHash != nil {
			return bytes.Equal(deploymentHash, definitionHash)
		}
	}

	// Immutables make exact matches unlikely, but without metadata this is the only option left.
	if len(runtimeBytecode) != len(definitionBytecode) {
		return false
	}
	if len(placeholders) > 0 {
		runtimeBytecode = slices.Clone(runtimeBytecode)
		for _, offset := range placeholders {
			clear(runtimeBytecode[offset : offset+common.AddressLength])
		}
	}
	return bytes.Equal(runtimeBytecode, definitionBytecode)
}

// maskedRuntimeBytecode decodes the runtime bytecode with every library placeholder replaced by a zero address.
// Returns the decoded bytecode along with the byte offsets of the replaced placeholders.
func (c *CompiledContract) maskedRuntimeBytecode() ([]byte, []int, error) {
	runtime := strings.TrimPrefix(c.RuntimeBytecodeHex, "0x")
	placeholderLength := common.AddressLength * 2
	zeroAddress := strings.Repeat("0", placeholderLength)

	placeholders := make([]int, 0)
	for {
		index := strings.Index(runtime, "__")
		if index < 0 {
			break
		}
		if index%2 != 0 || index+placeholderLength > len(runtime) {
			return nil, nil, fmt.Errorf("bytecode for contract %s has a malformed library placeholder", c.Name)
		}
		placeholders = append(placeholders, index/2)
		runtime = runtime[:index] + zeroAddress + runtime[index+placeholderLength:]
	}

	b, err := hex.DecodeString(runtime)
	if err != nil {
		return nil, nil, fmt.Errorf("could not decode bytecode for contract %s: %w", c.Name, err)
	}
	return b, placeholders, nil
}
