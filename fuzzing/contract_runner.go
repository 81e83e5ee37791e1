package fuzzing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/crytic/contest/chain/types"
	compilationTypes "github.com/crytic/contest/compilation/types"
	"github.com/crytic/contest/fuzzing/contracts"
	"github.com/crytic/contest/fuzzing/corpus"
	fuzzingutils "github.com/crytic/contest/fuzzing/utils"
	"github.com/crytic/contest/fuzzing/valuegeneration"
	"github.com/crytic/contest/logging"
	"github.com/crytic/contest/logging/colors"
	"github.com/crytic/contest/utils"
	"github.com/crytic/contest/utils/randomutils"
	"github.com/crytic/medusa-geth/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"
)

// rejectedReason is reported for unit tests whose assumptions did not hold.
const rejectedReason = "rejected: assumption not satisfied"

// ContractRunner runs every test function of a single test contract.
type ContractRunner struct {
	// name describes the name of the test contract.
	name string

	// contract describes the linked test contract.
	contract *compilationTypes.CompiledContract

	// code describes the init bytecode of the test contract.
	code []byte

	// libraries describes the init bytecode of the libraries deployed before the test contract, in order.
	libraries [][]byte

	// executor describes the environment the suite is set up in. Unit and fuzz tests run on clones of it.
	executor Executor

	// cloneLock serializes clones of executor.
	cloneLock sync.Mutex

	// sender describes the account deploying and calling the test contract.
	sender common.Address

	// initialBalance describes the balance of the test contract and sender once deployed.
	initialBalance *uint256.Int

	// failures describes where counterexamples are persisted, if anywhere.
	failures *corpus.FailureStore

	// events describes where test events are published, if anywhere.
	events *Events

	// runID identifies the run the suite belongs to.
	runID uuid.UUID

	// logger describes the runner's sub-logger.
	logger *logging.Logger
}

// NewContractRunner creates a ContractRunner for a linked test contract. libraries holds the init bytecode of the
// libraries the contract links against, in deployment order.
func NewContractRunner(contract *compilationTypes.CompiledContract, libraries [][]byte, executor Executor, sender common.Address, initialBalance *uint256.Int) (*ContractRunner, error) {
	code, err := contract.InitBytecode()
	if err != nil {
		return nil, err
	}
	if initialBalance == nil {
		initialBalance = uint256.NewInt(0)
	}
	return &ContractRunner{
		name:           contract.Name,
		contract:       contract,
		code:           code,
		libraries:      libraries,
		executor:       executor,
		sender:         sender,
		initialBalance: initialBalance,
		runID:          uuid.New(),
		logger:         logging.GlobalLogger.NewSubLogger("module", logging.RUNNER_SERVICE),
	}, nil
}

// WithFailureStore sets where counterexamples are persisted and replayed from.
func (r *ContractRunner) WithFailureStore(store *corpus.FailureStore) *ContractRunner {
	r.failures = store
	return r
}

// WithEvents sets where test events are published.
func (r *ContractRunner) WithEvents(events *Events) *ContractRunner {
	r.events = events
	return r
}

// WithRunID sets the identifier of the run the suite belongs to.
func (r *ContractRunner) WithRunID(runID uuid.UUID) *ContractRunner {
	r.runID = runID
	return r
}

// Name returns the name of the test contract.
func (r *ContractRunner) Name() string {
	return r.name
}

// testOutcome carries the result of a test from a worker back to the runner.
type testOutcome struct {
	signature string
	result    *TestResult
}

// RunTests sets up the test contract and runs every test function matching the filter. Unit and fuzz tests run in
// parallel, each on its own clone of the post-setup environment, followed by the invariant campaign.
func (r *ContractRunner) RunTests(ctx context.Context, filter TestFilter, options TestOptions, known contracts.Contracts) (*SuiteResult, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	r.logger.Info("Starting tests for ", colors.Bold, r.name, colors.Reset)
	start := time.Now()

	methods := fuzzingutils.ClassifyTestMethods(&r.contract.Abi, filter.MatchesTest, options.IncludeFuzzTests)
	warnings := methods.Warnings
	for _, warning := range warnings {
		r.logger.Warn(warning)
	}

	if methods.HasMultipleSetUps() {
		return r.finish(newSuiteResult(r.runID, r.name, time.Since(start), map[string]*TestResult{
			"setUp()": newSetUpFailureResult("Multiple setUp functions", nil),
		}, warnings))
	}

	// Created contracts can only be identified from traces.
	runInvariants := methods.HasInvariants && options.IncludeFuzzTests
	if runInvariants {
		defer r.executor.SetTracing(r.executor.Tracing())
		r.executor.SetTracing(true)
	}

	setup, err := r.Setup(methods.NeedsSetUp())
	if err != nil {
		return nil, err
	}
	if setup.SetupFailed {
		return r.finish(newSuiteResult(r.runID, r.name, time.Since(start), map[string]*TestResult{
			"setUp()": newSetUpFailureResult(*setup.FailureReason, setup),
		}, warnings))
	}

	identified := contracts.IdentifyContracts(known, setup.AllTraces()...)
	identified[setup.ContractAddress] = &contracts.IdentifiedContract{Name: r.contract.Name, Abi: &r.contract.Abi}
	valueSet := r.baseValueSet(setup, identified)

	results := make(map[string]*TestResult, len(methods.Tests)+len(methods.Invariants))
	if len(methods.Tests) > 0 {
		testResults, err := r.runTestsInParallel(ctx, methods.Tests, setup, options, identified, valueSet)
		if err != nil {
			return nil, err
		}
		maps.Copy(results, testResults)
	}

	if runInvariants && len(methods.Invariants) > 0 {
		invariantResults, err := r.runInvariantTests(methods.Invariants, setup, options, known, identified, valueSet)
		if err != nil {
			return nil, err
		}
		for signature, result := range invariantResults {
			results[signature] = result
			r.publishTestFinished(signature, result)
		}
	}

	duration := time.Since(start)
	suite := newSuiteResult(r.runID, r.name, duration, results, warnings)
	if len(results) > 0 {
		r.logger.Info("done. ", suite.Successes(), "/", len(results)-suite.Rejections(), " successful", logging.StructuredLogInfo{
			"contract": r.name, "rejected": suite.Rejections(), "duration": duration.String(),
		})
	}
	r.persistFailures(suite)
	return r.finish(suite)
}

// finish publishes the suite result.
func (r *ContractRunner) finish(suite *SuiteResult) (*SuiteResult, error) {
	if r.events != nil {
		if err := r.events.SuiteFinished.Publish(SuiteFinishedEvent{Result: suite}); err != nil {
			return nil, err
		}
	}
	return suite, nil
}

// publishTestFinished publishes a test result, logging handler errors.
func (r *ContractRunner) publishTestFinished(signature string, result *TestResult) {
	if r.events == nil {
		return
	}
	err := r.events.TestFinished.Publish(TestFinishedEvent{ContractName: r.name, Signature: signature, Result: result})
	if err != nil {
		r.logger.Error("Test event handler failed", err)
	}
}

// baseValueSet creates the value set every test starts from, seeded with the accounts and contracts of the setup
// and the values emitted in its logs.
func (r *ContractRunner) baseValueSet(setup *TestSetup, identified contracts.IdentifiedContracts) *valuegeneration.ValueSet {
	valueSet := valuegeneration.NewValueSet()
	valueSet.AddAddress(r.sender)
	valueSet.AddAddress(types.Caller)
	valueSet.AddAddress(setup.ContractAddress)
	for _, address := range identified.Addresses() {
		valueSet.AddAddress(address)
	}
	valueSet.AddFromLogs(setup.Logs, &r.contract.Abi)
	return valueSet
}

// cloneExecutor clones the runner's executor.
func (r *ContractRunner) cloneExecutor() (Executor, error) {
	r.cloneLock.Lock()
	defer r.cloneLock.Unlock()
	return r.executor.Clone()
}

// runTestsInParallel runs unit and fuzz tests across a pool of options.Workers workers. Results are collected over
// a channel and keyed by signature.
func (r *ContractRunner) runTestsInParallel(ctx context.Context, tests []*fuzzingutils.TestFunction, setup *TestSetup, options TestOptions, identified contracts.IdentifiedContracts, valueSet *valuegeneration.ValueSet) (map[string]*TestResult, error) {
	outcomes := make(chan testOutcome, len(tests))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(options.Workers)

	for _, test := range tests {
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			executor, err := r.cloneExecutor()
			if err != nil {
				return err
			}

			var result *TestResult
			if test.Kind == fuzzingutils.TestFunctionKindFuzz {
				result, err = r.runFuzzTest(executor, test, setup.Clone(), options, identified, valueSet)
			} else {
				result, err = r.runTest(executor, test, setup.Clone())
			}
			if err != nil {
				return fmt.Errorf("%s: %w", test.Signature(), err)
			}
			outcomes <- testOutcome{signature: test.Signature(), result: result}
			return nil
		})
	}

	err := group.Wait()
	close(outcomes)
	if err != nil {
		return nil, err
	}

	results := make(map[string]*TestResult, len(tests))
	for outcome := range outcomes {
		results[outcome.signature] = outcome.result
		r.publishTestFinished(outcome.signature, outcome.result)
	}
	return results, nil
}

// runTest runs a unit test once without committing.
func (r *ContractRunner) runTest(executor Executor, test *fuzzingutils.TestFunction, setup *TestSetup) (*TestResult, error) {
	start := time.Now()
	callResult, err := executor.Call(r.sender, setup.ContractAddress, test.Method.ID, nil, false)
	if err != nil {
		return nil, err
	}

	setup.Logs = append(setup.Logs, callResult.Logs...)
	maps.Copy(setup.LabeledAddresses, callResult.Labels)
	if callResult.Trace != nil {
		setup.Traces = append(setup.Traces, TraceEntry{Kind: TraceKindExecution, Trace: callResult.Trace})
	}

	result := &TestResult{
		Logs:             setup.Logs,
		Kind:             StandardTestKind(utils.SaturatingSub(callResult.Gas, callResult.Stipend)),
		Traces:           setup.Traces,
		Coverage:         callResult.Coverage,
		LabeledAddresses: setup.LabeledAddresses,
	}
	if callResult.Rejected {
		reason := rejectedReason
		result.Success = true
		result.Rejected = true
		result.FailureReason = &reason
	} else {
		result.Success = executor.IsSuccess(setup.ContractAddress, callResult.Reverted, callResult.StateChangeset, test.ShouldFail)
		if callResult.Reverted {
			reason := callResult.Reason
			result.FailureReason = &reason
		}
	}
	result.Duration = time.Since(start)

	r.logger.Debug(test.Signature(), " finished", logging.StructuredLogInfo{
		"success": result.Success, "gas": result.Kind.Gas, "duration": result.Duration.String(),
	})
	return result, nil
}

// runFuzzTest fuzzes a test function, replaying its persisted counterexample first.
func (r *ContractRunner) runFuzzTest(executor Executor, test *fuzzingutils.TestFunction, setup *TestSetup, options TestOptions, identified contracts.IdentifiedContracts, valueSet *valuegeneration.ValueSet) (*TestResult, error) {
	start := time.Now()
	randomProvider := randomutils.DeriveRandomProvider(options.Seed, test.Signature())
	generator := valuegeneration.NewRandomValueGenerator(nil, valueSet.Clone(), randomProvider)

	fuzzer := NewFuzzedExecutor(executor, generator, r.sender, options).WithSeeds(r.storedSeeds(test.Signature()))
	fuzzResult, err := fuzzer.Fuzz(test.Method, setup.ContractAddress, test.ShouldFail, identified)
	if err != nil {
		return nil, err
	}

	setup.Logs = append(setup.Logs, fuzzResult.Logs...)
	maps.Copy(setup.LabeledAddresses, fuzzResult.LabeledAddresses)
	if fuzzResult.Trace != nil {
		setup.Traces = append(setup.Traces, TraceEntry{Kind: TraceKindExecution, Trace: fuzzResult.Trace})
	}

	result := &TestResult{
		Success:          fuzzResult.Success,
		FailureReason:    fuzzResult.Reason,
		Counterexample:   fuzzResult.Counterexample,
		Logs:             setup.Logs,
		Kind:             FuzzTestKind(fuzzResult.Cases),
		Traces:           setup.Traces,
		LabeledAddresses: setup.LabeledAddresses,
		Duration:         time.Since(start),
	}
	r.logger.Debug(test.Signature(), " finished", logging.StructuredLogInfo{
		"success": result.Success, "runs": fuzzResult.Cases, "rejects": fuzzResult.Rejects, "duration": result.Duration.String(),
	})
	return result, nil
}

// runInvariantTests runs the invariant campaign on the runner's own executor.
func (r *ContractRunner) runInvariantTests(invariants []*fuzzingutils.TestFunction, setup *TestSetup, options TestOptions, known contracts.Contracts, identified contracts.IdentifiedContracts, valueSet *valuegeneration.ValueSet) (map[string]*TestResult, error) {
	stored := make(map[string][]corpus.StoredCall)
	for _, invariant := range invariants {
		if record := r.loadFailure(invariant.Signature()); record != nil {
			stored[invariant.Signature()] = record.Calls
		}
	}

	randomProvider := randomutils.DeriveRandomProvider(options.Seed, r.name+":invariants")
	executor := NewInvariantExecutor(r.executor, randomProvider, valueSet.Clone(), r.sender, options, known, identified)
	return executor.Run(invariants, setup, r.name, &r.contract.Abi, stored)
}

// loadFailure returns the persisted counterexample of a test, if any.
func (r *ContractRunner) loadFailure(signature string) *corpus.FailureRecord {
	if r.failures == nil {
		return nil
	}
	record, err := r.failures.Load(r.name, signature)
	if err != nil {
		r.logger.Warn("Could not load persisted failure for ", signature, err)
		return nil
	}
	return record
}

// storedSeeds returns the calldata of a fuzz test's persisted counterexample, if any.
func (r *ContractRunner) storedSeeds(signature string) [][]byte {
	record := r.loadFailure(signature)
	if record == nil {
		return nil
	}
	seeds := make([][]byte, 0, len(record.Calls))
	for _, call := range record.Calls {
		seeds = append(seeds, call.Calldata)
	}
	return seeds
}

// persistFailures stores the counterexample of every failing test and forgets the counterexample of every passing
// test.
func (r *ContractRunner) persistFailures(suite *SuiteResult) {
	if r.failures == nil {
		return
	}
	for _, signature := range suite.Signatures() {
		result := suite.TestResults[signature]
		var err error
		if result.Success || result.Counterexample == nil {
			if result.Success {
				err = r.failures.Remove(r.name, signature)
			}
		} else {
			err = r.failures.Save(&corpus.FailureRecord{
				RunID:     r.runID,
				Contract:  r.name,
				Signature: signature,
				Calls:     result.Counterexample.StoredCalls(),
				Reason:    result.Reason(),
			})
		}
		if err != nil {
			r.logger.Warn("Could not update persisted failure for ", signature, err)
		}
	}
}
