package config

import (
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core/vm"
)

// TestChainConfig represents the configuration of the simulated execution environment.
type TestChainConfig struct {
	// GasLimit describes the gas limit provided to every call and deployment.
	GasLimit uint64 `json:"gasLimit"`

	// BlockNumber describes the block number observed by executed code.
	BlockNumber uint64 `json:"blockNumber"`

	// BlockTimestamp describes the block timestamp observed by executed code.
	BlockTimestamp uint64 `json:"blockTimestamp"`

	// Coinbase describes the block coinbase observed by executed code.
	Coinbase common.Address `json:"coinbase"`

	// CodeSizeCheckDisabled indicates whether code size checks should be disabled in the EVM. This allows for code
	// size to be disabled without disabling the entire EIP it was introduced.
	CodeSizeCheckDisabled bool `json:"codeSizeCheckDisabled"`

	// CheatCodeConfig indicates the configuration for EVM cheat codes to use.
	CheatCodeConfig CheatCodeConfig `json:"cheatCodes"`

	// CoverageEnabled indicates whether executed instructions should be recorded for every call.
	CoverageEnabled bool `json:"coverageEnabled"`
}

// CheatCodeConfig describes any configuration options related to the use of vm extensions (a.k.a. cheat codes)
type CheatCodeConfig struct {
	// CheatCodesEnabled indicates whether cheat code pre-compiles should be enabled in the chain.
	CheatCodesEnabled bool `json:"cheatCodesEnabled"`
}

// GetVMConfigExtensions derives a vm.ConfigExtensions from the provided TestChainConfig.
func (t *TestChainConfig) GetVMConfigExtensions() *vm.ConfigExtensions {
	return &vm.ConfigExtensions{
		OverrideCodeSizeCheck:    t.CodeSizeCheckDisabled,
		AdditionalPrecompiles:    make(map[common.Address]vm.PrecompiledContract),
		ContractAddressOverrides: make(map[common.Hash]common.Address),
	}
}
