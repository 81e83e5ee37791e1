package config

import (
	"math/big"
	"runtime"

	chainConfig "github.com/crytic/contest/chain/config"
	"github.com/crytic/contest/chain/types"
	"github.com/crytic/contest/compilation"
	"github.com/rs/zerolog"
)

// GetDefaultProjectConfig obtains a default configuration for a project: a Foundry build, every CPU, and the budgets
// test suites conventionally run with.
func GetDefaultProjectConfig() (*ProjectConfig, error) {
	chain, err := chainConfig.DefaultTestChainConfig()
	if err != nil {
		return nil, err
	}

	// Test contracts start with 2^96 wei.
	var balance ContractBalance
	balance.Lsh(big.NewInt(1), 96)

	projectConfig := &ProjectConfig{
		Fuzzing: FuzzingConfig{
			Workers:          runtime.NumCPU(),
			Seed:             0,
			FuzzRuns:         256,
			MaxLocalRejects:  1024,
			MaxGlobalRejects: 65536,
			FailureDirectory: "cache/contest",
			DeployerAddress:  types.DefaultSender.Hex(),
			SenderAddresses: []string{
				"0x0000000000000000000000000000000000010000",
				"0x0000000000000000000000000000000000020000",
				"0x0000000000000000000000000000000000030000",
			},
			ContractBalance: balance,
		},
		Testing: TestingConfig{
			IncludeFuzzTests:         true,
			InvariantRuns:            256,
			InvariantDepth:           15,
			InvariantFailOnRevert:    false,
			InvariantCallOverride:    false,
			InvariantTargetMethods:   []string{},
			InvariantExcludedMethods: []string{},
		},
		Chain:       *chain,
		Compilation: compilation.NewCompilationConfig(),
		Logging: LoggingConfig{
			Level:        zerolog.InfoLevel,
			LogDirectory: "",
			NoColor:      false,
		},
	}
	return projectConfig, nil
}
