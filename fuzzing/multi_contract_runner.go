package fuzzing

import (
	"sort"
	"sync"

	compilationTypes "github.com/crytic/contest/compilation/types"
	"github.com/crytic/contest/fuzzing/contracts"
	"github.com/crytic/contest/fuzzing/corpus"
	fuzzingutils "github.com/crytic/contest/fuzzing/utils"
	"github.com/crytic/contest/logging"
	"github.com/crytic/medusa-geth/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"golang.org/x/net/context"
	"golang.org/x/sync/errgroup"
)

// ExecutorFactory creates a fresh, empty execution environment.
type ExecutorFactory func() (Executor, error)

// MultiContractRunner runs the suites of every test contract of a project.
type MultiContractRunner struct {
	// contracts describes every contract of the project. Test contracts are selected from it, and it is used to
	// link libraries and identify created contracts.
	contracts contracts.Contracts

	// newExecutor creates the environment of each suite.
	newExecutor ExecutorFactory

	// sender describes the account deploying and calling the test contracts.
	sender common.Address

	// initialBalance describes the balance of each test contract and the sender once deployed.
	initialBalance *uint256.Int

	// options describes how each suite is run.
	options TestOptions

	// failures describes where counterexamples are persisted, if anywhere.
	failures *corpus.FailureStore

	// Events describes where test events are published.
	Events Events

	// RunID identifies the run.
	RunID uuid.UUID

	// logger describes the runner's sub-logger.
	logger *logging.Logger
}

// NewMultiContractRunner creates a MultiContractRunner over the contracts of a project.
func NewMultiContractRunner(projectContracts contracts.Contracts, newExecutor ExecutorFactory, sender common.Address, initialBalance *uint256.Int, options TestOptions) *MultiContractRunner {
	return &MultiContractRunner{
		contracts:      projectContracts,
		newExecutor:    newExecutor,
		sender:         sender,
		initialBalance: initialBalance,
		options:        options,
		RunID:          uuid.New(),
		logger:         logging.GlobalLogger.NewSubLogger("module", logging.RUNNER_SERVICE),
	}
}

// WithFailureStore sets where counterexamples are persisted and replayed from.
func (m *MultiContractRunner) WithFailureStore(store *corpus.FailureStore) *MultiContractRunner {
	m.failures = store
	return m
}

// TestContracts returns the deployable, non-library contracts declaring tests which match the filter, sorted by
// name.
func (m *MultiContractRunner) TestContracts(filter TestFilter) []*compilationTypes.CompiledContract {
	matched := make([]*compilationTypes.CompiledContract, 0)
	for _, contract := range m.contracts {
		if !contract.IsDeployable() || contract.IsLibrary() || !filter.MatchesContract(contract.Name) {
			continue
		}
		if fuzzingutils.HasTestEntryPoints(&contract.Abi) {
			matched = append(matched, contract)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].FullyQualifiedName() < matched[j].FullyQualifiedName()
	})
	return matched
}

// Run runs the suite of every matched test contract in parallel, each in its own environment. Results are keyed by
// the fully qualified name of the test contract.
func (m *MultiContractRunner) Run(ctx context.Context, filter TestFilter) (map[string]*SuiteResult, error) {
	if err := m.options.Validate(); err != nil {
		return nil, err
	}

	knownByName := make(map[string]*compilationTypes.CompiledContract, len(m.contracts))
	for _, contract := range m.contracts {
		knownByName[contract.FullyQualifiedName()] = contract
	}

	testContracts := m.TestContracts(filter)
	m.logger.Info("Running ", len(testContracts), " test contracts", logging.StructuredLogInfo{"runId": m.RunID.String()})

	var lock sync.Mutex
	results := make(map[string]*SuiteResult, len(testContracts))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(m.options.Workers)
	for _, contract := range testContracts {
		group.Go(func() error {
			deployment, err := fuzzingutils.LinkContract(contract, knownByName, m.sender, 1)
			if err != nil {
				return err
			}
			libraries, err := deployment.LibraryBytecodes()
			if err != nil {
				return err
			}
			executor, err := m.newExecutor()
			if err != nil {
				return err
			}
			runner, err := NewContractRunner(deployment.Contract, libraries, executor, m.sender, m.initialBalance)
			if err != nil {
				return err
			}
			runner.WithFailureStore(m.failures).WithEvents(&m.Events).WithRunID(m.RunID)

			suite, err := runner.RunTests(groupCtx, filter, m.options, m.contracts)
			if err != nil {
				return err
			}
			lock.Lock()
			results[contract.FullyQualifiedName()] = suite
			lock.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
