package cmd

import (
	"os"

	"github.com/crytic/contest/chain"
	"github.com/crytic/contest/compilation"
	"github.com/crytic/contest/fuzzing"
	"github.com/crytic/contest/fuzzing/config"
	"github.com/crytic/contest/fuzzing/contracts"
	"github.com/crytic/medusa-geth/accounts/abi"
)

// compileProject builds the project in the working directory and loads its artifacts. If persistence is enabled,
// the artifact hash is compared against the previous run.
func compileProject(projectConfig *config.ProjectConfig) (contracts.Contracts, error) {
	projectDirectory, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	compilationConfig := projectConfig.Compilation
	if compilationConfig == nil {
		compilationConfig = compilation.NewCompilationConfig()
	}
	cmdLogger.Info("Compiling targets with ", compilationConfig.BuildCommand)
	compiled, _, err := compilationConfig.Compile(projectDirectory)
	if err != nil {
		return nil, err
	}
	cmdLogger.Info("Loaded ", len(compiled), " contracts")

	if projectConfig.Fuzzing.FailureDirectory != "" {
		compilation.NotifyArtifactHashStatus(compiled, projectConfig.Fuzzing.FailureDirectory, cmdLogger)
	}
	return compiled, nil
}

// newExecutorFactory returns an ExecutorFactory creating a fresh TestChain for every suite. Every chain decodes
// custom errors using the ABIs of the project.
func newExecutorFactory(projectConfig *config.ProjectConfig, projectContracts contracts.Contracts) fuzzing.ExecutorFactory {
	chainConfig := projectConfig.Chain
	abis := projectABIs(projectContracts)
	return func() (fuzzing.Executor, error) {
		testChain, err := chain.NewTestChain(&chainConfig)
		if err != nil {
			return nil, err
		}
		testChain.SetContractABIs(abis)
		return testChain, nil
	}
}

// projectABIs returns the ABIs of every contract of the project.
func projectABIs(projectContracts contracts.Contracts) []*abi.ABI {
	abis := make([]*abi.ABI, 0, len(projectContracts))
	for _, contract := range projectContracts {
		abis = append(abis, &contract.Abi)
	}
	return abis
}

// newMultiContractRunner creates the runner for a project from its configuration.
func newMultiContractRunner(projectConfig *config.ProjectConfig, projectContracts contracts.Contracts) (*fuzzing.MultiContractRunner, error) {
	options, err := projectConfig.TestOptions()
	if err != nil {
		return nil, err
	}
	deployer, err := projectConfig.Deployer()
	if err != nil {
		return nil, err
	}
	initialBalance, err := projectConfig.Fuzzing.ContractBalance.Uint256()
	if err != nil {
		return nil, err
	}
	return fuzzing.NewMultiContractRunner(projectContracts, newExecutorFactory(projectConfig, projectContracts), deployer, initialBalance, options), nil
}
