package fuzzing

import (
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/crytic/contest/chain/types"
	"github.com/crytic/contest/fuzzing/calls"
	"github.com/crytic/contest/fuzzing/contracts"
	"github.com/crytic/contest/fuzzing/corpus"
	fuzzingutils "github.com/crytic/contest/fuzzing/utils"
	"github.com/crytic/contest/fuzzing/valuegeneration"
	"github.com/crytic/contest/logging"
	"github.com/crytic/contest/utils/randomutils"
	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// noContractsToFuzzReason is reported for every invariant when a campaign has no method to call.
const noContractsToFuzzReason = "No contracts to fuzz."

// InvariantFailure describes how an invariant was broken during a campaign.
type InvariantFailure struct {
	// Reason describes why the invariant was considered broken.
	Reason string

	// Sequence describes the calls executed from the pristine state up to the break.
	Sequence calls.CallSequence

	// GeneratorSequence describes the decisions of the campaign's call generator up to the break, nil if no call
	// generator was installed.
	GeneratorSequence []*types.OverrideCall

	// Invariant describes the broken invariant. It is nil when the break was caused by the revert policy, in which
	// case replay executes the whole sequence.
	Invariant *abi.Method
}

// invariantCampaign describes the state of an exploration campaign shared by every invariant of a contract.
type invariantCampaign struct {
	// address describes the test contract declaring the invariants.
	address common.Address

	// active describes the invariants which still hold, in signature order.
	active []*fuzzingutils.TestFunction

	// failures maps the signatures of broken invariants to how they were broken.
	failures map[string]*InvariantFailure

	// runs describes the number of sequences explored.
	runs int

	// reverts describes the number of reverted calls across every sequence.
	reverts int

	// localRejects and globalRejects count rejected calls, consecutively and in total.
	localRejects  int
	globalRejects int
}

// breakAll marks every invariant still holding as broken and empties the active set.
func (c *invariantCampaign) breakAll(reason string, sequence calls.CallSequence, generatorSequence []*types.OverrideCall) {
	for _, invariant := range c.active {
		c.failures[invariant.Signature()] = &InvariantFailure{
			Reason:            reason,
			Sequence:          sequence.Clone(),
			GeneratorSequence: generatorSequence,
		}
	}
	c.active = nil
}

// InvariantExecutor explores random call sequences against the contracts deployed during setup, checking every
// invariant after every call, and replays the sequences which broke an invariant into counterexamples. It runs
// single threaded over committing calls, and restores the environment to its initial state before returning.
type InvariantExecutor struct {
	// executor describes the environment the campaign runs against. It must be owned by this InvariantExecutor.
	executor Executor

	// randomProvider drives target and sender selection.
	randomProvider *rand.Rand

	// valueSet seeds argument generation.
	valueSet *valuegeneration.ValueSet

	// valueGenerator generates call arguments from randomProvider and valueSet.
	valueGenerator valuegeneration.ValueGenerator

	// sender describes the account invariants are checked from.
	sender common.Address

	// options describes the campaign budget and policies.
	options TestOptions

	// known describes the contracts created contracts are identified against.
	known contracts.Contracts

	// identified describes the contracts identified in the setup traces.
	identified contracts.IdentifiedContracts

	// logger describes the executor's sub-logger.
	logger *logging.Logger
}

// NewInvariantExecutor creates an InvariantExecutor. The random provider must be owned exclusively by the executor.
func NewInvariantExecutor(executor Executor, randomProvider *rand.Rand, valueSet *valuegeneration.ValueSet, sender common.Address, options TestOptions, known contracts.Contracts, identified contracts.IdentifiedContracts) *InvariantExecutor {
	return &InvariantExecutor{
		executor:       executor,
		randomProvider: randomProvider,
		valueSet:       valueSet,
		valueGenerator: valuegeneration.NewRandomValueGenerator(nil, valueSet, randomProvider),
		sender:         sender,
		options:        options,
		known:          known,
		identified:     identified,
		logger:         logging.GlobalLogger.NewSubLogger("module", logging.RUNNER_SERVICE),
	}
}

// TargetMethods returns the methods a campaign calls: the state-mutating methods of every identified contract other
// than the test contract and the environment's own contracts. If there are none, the test contract's own
// state-mutating methods are used instead.
func (e *InvariantExecutor) TargetMethods(address common.Address, contractName string, contractAbi *abi.ABI) []*contracts.DeployedContractMethod {
	methods := make([]*contracts.DeployedContractMethod, 0)
	add := func(target common.Address, contract *contracts.Contract) {
		contract = contract.WithTargetMethods(e.options.InvariantTargetMethods).WithExcludedMethods(e.options.InvariantExcludedMethods)
		for _, method := range contract.CandidateMethods() {
			methods = append(methods, &contracts.DeployedContractMethod{Address: target, Contract: contract, Method: method})
		}
	}

	for _, target := range e.identified.Addresses() {
		if target == address || target == types.CheatCodeAddress || target == types.DefaultCreate2Deployer {
			continue
		}
		identified := e.identified[target]
		add(target, contracts.NewContract(identified.Name, identified.Abi))
	}
	// Nothing else was deployed during setup, so the test contract drives its own state.
	if len(methods) == 0 {
		add(address, contracts.NewContract(contractName, contractAbi))
	}
	return methods
}

// Run explores call sequences to break the provided invariants and returns one result per invariant, keyed by
// signature. stored maps invariant signatures to persisted counterexamples, which are checked before exploring.
func (e *InvariantExecutor) Run(invariants []*fuzzingutils.TestFunction, setup *TestSetup, contractName string, contractAbi *abi.ABI, stored map[string][]corpus.StoredCall) (map[string]*TestResult, error) {
	start := time.Now()
	pristine := e.executor.Snapshot()
	defer e.executor.Restore(pristine)

	targets := e.TargetMethods(setup.ContractAddress, contractName, contractAbi)
	if len(targets) == 0 {
		results := make(map[string]*TestResult, len(invariants))
		for _, invariant := range invariants {
			result := e.newResult(setup, 0, 0)
			reason := noContractsToFuzzReason
			result.Success = false
			result.FailureReason = &reason
			results[invariant.Signature()] = result
		}
		return results, nil
	}

	campaign, err := e.explore(invariants, setup.ContractAddress, targets, pristine, stored)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Invariant campaign for ", contractName, " finished after ", campaign.runs, " runs with ",
		len(campaign.failures), " broken invariants")

	results := make(map[string]*TestResult, len(invariants))
	for _, invariant := range invariants {
		result := e.newResult(setup, campaign.runs, campaign.reverts)
		if failure, broken := campaign.failures[invariant.Signature()]; broken {
			result.Success = false
			if failure.Reason != "" {
				reason := failure.Reason
				result.FailureReason = &reason
			}
			if len(failure.Sequence) > 0 {
				e.replay(failure, setup.ContractAddress, pristine, result)
			}
		}
		result.Duration = time.Since(start)
		results[invariant.Signature()] = result
	}
	return results, nil
}

// newResult creates a passing invariant result carrying the setup's logs, traces and labels.
func (e *InvariantExecutor) newResult(setup *TestSetup, runs int, reverts int) *TestResult {
	clone := setup.Clone()
	return &TestResult{
		Success:          true,
		Logs:             clone.Logs,
		Kind:             InvariantTestKind(runs, reverts),
		Traces:           clone.Traces,
		LabeledAddresses: clone.LabeledAddresses,
	}
}

// checkInvariant calls an invariant without committing. It is broken if the call reverts, records a failure, or
// returns false.
func (e *InvariantExecutor) checkInvariant(address common.Address, invariant *abi.Method) (bool, string, *types.CallResult, error) {
	result, err := e.executor.Call(e.sender, address, invariant.ID, nil, false)
	if err != nil {
		return false, "", nil, err
	}
	if result.Reverted {
		return true, result.Reason, result, nil
	}
	if !e.executor.IsSuccess(address, false, result.StateChangeset, false) {
		return true, "", result, nil
	}
	if returnsFalse(invariant, result.ReturnData) {
		return true, fmt.Sprintf("%s returned false", invariant.Sig), result, nil
	}
	return false, "", result, nil
}

// returnsFalse indicates whether a method declaring a single bool output returned false.
func returnsFalse(method *abi.Method, returnData []byte) bool {
	if len(method.Outputs) != 1 || method.Outputs[0].Type.T != abi.BoolTy || len(returnData) < 32 {
		return false
	}
	return new(big.Int).SetBytes(returnData[:32]).Sign() == 0
}

// checkActive checks every invariant still holding, moving broken invariants to the campaign failures.
func (e *InvariantExecutor) checkActive(campaign *invariantCampaign, sequence calls.CallSequence, generator *RandomCallGenerator) error {
	remaining := make([]*fuzzingutils.TestFunction, 0, len(campaign.active))
	for _, invariant := range campaign.active {
		broken, reason, _, err := e.checkInvariant(campaign.address, &invariant.Method)
		if err != nil {
			return err
		}
		if !broken {
			remaining = append(remaining, invariant)
			continue
		}

		failure := &InvariantFailure{
			Reason:    reason,
			Sequence:  sequence.Clone(),
			Invariant: &invariant.Method,
		}
		if generator != nil {
			failure.GeneratorSequence = generator.Sequence()
		}
		campaign.failures[invariant.Signature()] = failure
	}
	campaign.active = remaining
	return nil
}

// explore runs the campaign: persisted counterexamples first, then the initial state, then up to InvariantRuns
// random sequences of InvariantDepth calls, each starting from the pristine snapshot.
func (e *InvariantExecutor) explore(invariants []*fuzzingutils.TestFunction, address common.Address, targets []*contracts.DeployedContractMethod, pristine types.Snapshot, stored map[string][]corpus.StoredCall) (*invariantCampaign, error) {
	campaign := &invariantCampaign{
		address:  address,
		active:   slices.Clone(invariants),
		failures: make(map[string]*InvariantFailure),
	}

	if err := e.checkStored(campaign, pristine, stored); err != nil {
		return nil, err
	}

	e.executor.Restore(pristine)
	if err := e.checkActive(campaign, nil, nil); err != nil {
		return nil, err
	}

	for campaign.runs < e.options.InvariantRuns && len(campaign.active) > 0 {
		if err := e.exploreSequence(campaign, targets, pristine); err != nil {
			return nil, err
		}
	}
	return campaign, nil
}

// exploreSequence explores a single random sequence from the pristine snapshot.
func (e *InvariantExecutor) exploreSequence(campaign *invariantCampaign, targets []*contracts.DeployedContractMethod, pristine types.Snapshot) error {
	e.executor.Restore(pristine)
	campaign.runs++

	var generator *RandomCallGenerator
	if e.options.InvariantCallOverride {
		forked := randomutils.ForkRandomProvider(e.randomProvider)
		generator = NewRandomCallGenerator(forked, valuegeneration.NewRandomValueGenerator(nil, e.valueSet, forked), e.options.Senders, targets)
		e.executor.SetCallGenerator(generator)
		defer e.executor.SetCallGenerator(nil)
	}
	generatorSequence := func() []*types.OverrideCall {
		if generator == nil {
			return nil
		}
		return generator.Sequence()
	}

	sequence := make(calls.CallSequence, 0, e.options.InvariantDepth)
	for depth := 0; depth < e.options.InvariantDepth && len(campaign.active) > 0; {
		element, err := e.generateCall(targets)
		if err != nil {
			return err
		}
		element.Result, err = e.executor.Call(element.Sender, element.Target, element.Calldata, nil, true)
		if err != nil {
			return err
		}
		sequence = append(sequence, element)

		if element.Result.Rejected {
			campaign.localRejects++
			campaign.globalRejects++
			if campaign.localRejects > e.options.FuzzMaxLocalRejects || campaign.globalRejects > e.options.FuzzMaxGlobalRejects {
				campaign.breakAll(tooManyRejectsReason, nil, nil)
			}
			continue
		}
		campaign.localRejects = 0
		depth++

		if element.Result.Reverted {
			campaign.reverts++
			if e.options.InvariantRevertPolicy == RevertPolicyFail {
				campaign.breakAll(element.Result.Reason, sequence, generatorSequence())
			}
			continue
		}

		if err := e.checkActive(campaign, sequence, generator); err != nil {
			return err
		}
	}
	return nil
}

// generateCall generates a call to a random target method from a random sender.
func (e *InvariantExecutor) generateCall(targets []*contracts.DeployedContractMethod) (*calls.CallSequenceElement, error) {
	target := targets[e.randomProvider.Intn(len(targets))]
	sender := e.options.Senders[e.randomProvider.Intn(len(e.options.Senders))]
	calldata, _, err := valuegeneration.GenerateCalldata(e.valueGenerator, &target.Method)
	if err != nil {
		return nil, fmt.Errorf("could not generate calldata for %s.%s: %w", target.Contract.Name(), target.Method.Sig, err)
	}
	method := target.Method
	return calls.NewCallSequenceElement(sender, target.Address, calldata, target.Contract.Name(), &method), nil
}

// checkStored executes the persisted counterexample of every invariant which has one, breaking the invariant if
// the counterexample still reproduces.
func (e *InvariantExecutor) checkStored(campaign *invariantCampaign, pristine types.Snapshot, stored map[string][]corpus.StoredCall) error {
	for _, invariant := range slices.Clone(campaign.active) {
		storedCalls, ok := stored[invariant.Signature()]
		if !ok || len(storedCalls) == 0 {
			continue
		}

		e.executor.Restore(pristine)
		fetch := func(index int) (*calls.CallSequenceElement, error) {
			if index >= len(storedCalls) {
				return nil, nil
			}
			call := storedCalls[index]
			return calls.NewCallSequenceElement(call.Sender, call.Target, call.Calldata,
				e.identified.Name(call.Target), e.identified.Method(call.Target, call.Calldata)), nil
		}
		broken, reason := false, ""
		check := func(executed calls.CallSequence) (bool, error) {
			var err error
			broken, reason, _, err = e.checkInvariant(campaign.address, &invariant.Method)
			return broken, err
		}
		sequence, err := calls.ExecuteCallSequenceIteratively(e.executor, fetch, check)
		if err != nil {
			return err
		}
		if !broken {
			e.logger.Debug("Persisted counterexample for ", invariant.Signature(), " no longer reproduces")
			continue
		}

		campaign.failures[invariant.Signature()] = &InvariantFailure{
			Reason:    reason,
			Sequence:  sequence.Clone(),
			Invariant: &invariant.Method,
		}
		campaign.active = slices.DeleteFunc(campaign.active, func(f *fuzzingutils.TestFunction) bool {
			return f.Signature() == invariant.Signature()
		})
	}
	return nil
}

// replay re-executes a failing sequence from the pristine snapshot with tracing enabled, recording the
// counterexample, logs and traces into result. Replay stops as soon as the invariant breaks, so the counterexample
// is the shortest prefix reproducing the break. If a call cannot be replayed, the partial counterexample is kept.
func (e *InvariantExecutor) replay(failure *InvariantFailure, address common.Address, pristine types.Snapshot, result *TestResult) {
	e.executor.Restore(pristine)
	defer e.executor.SetTracing(e.executor.Tracing())
	e.executor.SetTracing(true)
	if failure.GeneratorSequence != nil {
		e.executor.SetCallGenerator(NewReplayCallGenerator(failure.GeneratorSequence))
		defer e.executor.SetCallGenerator(nil)
	}

	identified := e.identified.Clone()
	counterExample := &CounterExample{Sequence: make([]*BaseCounterExample, 0, len(failure.Sequence))}
	addTrace := func(trace *types.CallFrame) {
		if trace == nil {
			return
		}
		result.Traces = append(result.Traces, TraceEntry{Kind: TraceKindExecution, Trace: trace})
		identified.Identify(e.known, trace)
	}

	fetch := func(index int) (*calls.CallSequenceElement, error) {
		if index >= len(failure.Sequence) {
			return nil, nil
		}
		return failure.Sequence[index].Clone(), nil
	}
	check := func(executed calls.CallSequence) (bool, error) {
		last := executed[len(executed)-1]
		result.Logs = append(result.Logs, last.Result.Logs...)
		maps.Copy(result.LabeledAddresses, last.Result.Labels)
		addTrace(last.Result.Trace)
		addTrace(last.Result.OverrideTrace)
		counterExample.Sequence = append(counterExample.Sequence,
			NewBaseCounterExample(last.Sender, last.Target, last.Calldata, identified))

		if failure.Invariant == nil {
			return false, nil
		}
		broken, _, invariantResult, err := e.checkInvariant(address, failure.Invariant)
		if err != nil {
			return false, err
		}
		if broken {
			result.Logs = append(result.Logs, invariantResult.Logs...)
			if invariantResult.Trace != nil {
				result.Traces = append(result.Traces, TraceEntry{Kind: TraceKindExecution, Trace: invariantResult.Trace})
			}
		}
		return broken, nil
	}

	if _, err := calls.ExecuteCallSequenceIteratively(e.executor, fetch, check); err != nil {
		e.logger.Warn("Replay of a broken invariant stopped early, reporting the partial sequence", err)
	}
	if len(counterExample.Sequence) > 0 {
		result.Counterexample = counterExample
	}
}
