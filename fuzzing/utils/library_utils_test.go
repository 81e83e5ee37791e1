package utils

import (
	"testing"

	"github.com/crytic/contest/compilation/types"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGetDeploymentOrder verifies dependencies are deployed first, with ties broken by priority then name.
func TestGetDeploymentOrder(t *testing.T) {
	dependencies := map[string][]string{
		"A": {"B", "C"},
		"B": {"C"},
		"C": {},
		"D": {},
		"E": {},
	}

	order, err := GetDeploymentOrder(dependencies, []string{"E"}, []string{"D"})
	require.NoError(t, err)
	assert.Equal(t, []string{"E", "D", "C", "B", "A"}, order)

	order, err = GetDeploymentOrder(dependencies, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A", "D", "E"}, order)
}

// TestGetDeploymentOrder_Cycle verifies cycles are reported along with the partial order.
func TestGetDeploymentOrder_Cycle(t *testing.T) {
	order, err := GetDeploymentOrder(map[string][]string{
		"A": {"B"},
		"B": {"A"},
		"C": {},
	}, nil, nil)
	assert.Error(t, err)
	assert.Equal(t, []string{"C"}, order)
}

// TestLinkContract verifies libraries are linked transitively and placed at the deployer's CREATE addresses.
func TestLinkContract(t *testing.T) {
	mathPlaceholder := types.GenerateLibraryPlaceholder("src/Math.sol:Math")
	basePlaceholder := types.GenerateLibraryPlaceholder("src/Base.sol:Base")

	base := &types.CompiledContract{Name: "Base", SourcePath: "src/Base.sol", InitBytecodeHex: "6001", RuntimeBytecodeHex: "6001"}
	math := &types.CompiledContract{
		Name:                "Math",
		SourcePath:          "src/Math.sol",
		InitBytecodeHex:     "73__$" + basePlaceholder + "$__",
		RuntimeBytecodeHex:  "00",
		LibraryPlaceholders: map[string]string{basePlaceholder: base.FullyQualifiedName()},
	}
	test := &types.CompiledContract{
		Name:                "CounterTest",
		SourcePath:          "test/Counter.t.sol",
		InitBytecodeHex:     "73__$" + mathPlaceholder + "$__",
		RuntimeBytecodeHex:  "00",
		LibraryPlaceholders: map[string]string{mathPlaceholder: math.FullyQualifiedName()},
	}
	known := map[string]*types.CompiledContract{
		base.FullyQualifiedName(): base,
		math.FullyQualifiedName(): math,
	}

	deployer := common.HexToAddress("0x1234")
	deployment, err := LinkContract(test, known, deployer, 1)
	require.NoError(t, err)
	require.Len(t, deployment.Libraries, 2)
	assert.Equal(t, "Base", deployment.Libraries[0].Name)
	assert.Equal(t, "Math", deployment.Libraries[1].Name)

	baseAddress := crypto.CreateAddress(deployer, 1)
	mathAddress := crypto.CreateAddress(deployer, 2)
	assert.Equal(t, baseAddress, deployment.LibraryAddresses[base.FullyQualifiedName()])
	assert.Equal(t, mathAddress, deployment.LibraryAddresses[math.FullyQualifiedName()])

	code, err := deployment.Contract.InitBytecode()
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0x73}, mathAddress.Bytes()...), code)

	libraryCode, err := deployment.LibraryBytecodes()
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0x73}, baseAddress.Bytes()...), libraryCode[1])
}

// TestLinkContract_UnknownLibrary verifies missing libraries are reported.
func TestLinkContract_UnknownLibrary(t *testing.T) {
	placeholder := types.GenerateLibraryPlaceholder("src/Missing.sol:Missing")
	test := &types.CompiledContract{
		Name:                "CounterTest",
		InitBytecodeHex:     "73__$" + placeholder + "$__",
		LibraryPlaceholders: map[string]string{placeholder: "src/Missing.sol:Missing"},
	}
	_, err := LinkContract(test, map[string]*types.CompiledContract{}, common.Address{}, 1)
	assert.Error(t, err)
}
