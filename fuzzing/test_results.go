package fuzzing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/crytic/contest/chain/types"
	"github.com/crytic/contest/fuzzing/contracts"
	"github.com/crytic/contest/fuzzing/corpus"
	"github.com/crytic/contest/fuzzing/valuegeneration"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/common/hexutil"
	coretypes "github.com/crytic/medusa-geth/core/types"
	"github.com/google/uuid"
)

// TraceKind describes which stage of a test produced a trace.
type TraceKind int

const (
	// TraceKindDeployment describes traces of library and test contract deployments.
	TraceKindDeployment TraceKind = iota
	// TraceKindSetup describes traces of the setUp hook, and of failed deployments.
	TraceKindSetup
	// TraceKindExecution describes traces of test calls.
	TraceKindExecution
)

// String returns a lowercase name for the kind.
func (k TraceKind) String() string {
	switch k {
	case TraceKindDeployment:
		return "deployment"
	case TraceKindSetup:
		return "setup"
	case TraceKindExecution:
		return "execution"
	default:
		return fmt.Sprintf("TraceKind(%d)", int(k))
	}
}

// TraceEntry describes a trace along with the stage which produced it.
type TraceEntry struct {
	Kind  TraceKind
	Trace *types.CallFrame
}

// TestKindType tags the variant of a TestKind.
type TestKindType int

const (
	// TestKindStandard describes a unit test result.
	TestKindStandard TestKindType = iota
	// TestKindFuzz describes a fuzz test result.
	TestKindFuzz
	// TestKindInvariant describes an invariant result.
	TestKindInvariant
)

// TestKind describes the reporting shape of a test result, carrying aggregate statistics for its variant.
type TestKind struct {
	// Type tags the variant.
	Type TestKindType

	// Gas describes the gas used by a unit test, excluding the intrinsic stipend.
	Gas uint64

	// Runs describes the number of cases a fuzz test executed or the number of sequences an invariant campaign
	// explored.
	Runs int

	// Reverts describes the number of reverted calls of an invariant campaign.
	Reverts int
}

// StandardTestKind returns the TestKind of a unit test.
func StandardTestKind(gas uint64) TestKind {
	return TestKind{Type: TestKindStandard, Gas: gas}
}

// FuzzTestKind returns the TestKind of a fuzz test.
func FuzzTestKind(runs int) TestKind {
	return TestKind{Type: TestKindFuzz, Runs: runs}
}

// InvariantTestKind returns the TestKind of an invariant.
func InvariantTestKind(runs int, reverts int) TestKind {
	return TestKind{Type: TestKindInvariant, Runs: runs, Reverts: reverts}
}

// String returns the statistics of the kind, e.g. "gas: 2310" or "runs: 256, reverts: 12".
func (k TestKind) String() string {
	switch k.Type {
	case TestKindFuzz:
		return fmt.Sprintf("runs: %d", k.Runs)
	case TestKindInvariant:
		return fmt.Sprintf("runs: %d, reverts: %d", k.Runs, k.Reverts)
	default:
		return fmt.Sprintf("gas: %d", k.Gas)
	}
}

// BaseCounterExample describes a single call of a counterexample.
type BaseCounterExample struct {
	// Sender describes the account the call was sent from.
	Sender common.Address

	// Target describes the contract the call was sent to.
	Target common.Address

	// Calldata describes the input of the call.
	Calldata hexutil.Bytes

	// Signature describes the signature of the called method, if it could be decoded.
	Signature string

	// ContractName describes the name of the called contract, if it was identified.
	ContractName string

	// Args describes the decoded arguments of the call, if it could be decoded.
	Args string
}

// NewBaseCounterExample creates a BaseCounterExample, decoding the call against the identified contracts.
func NewBaseCounterExample(sender common.Address, target common.Address, calldata []byte, identified contracts.IdentifiedContracts) *BaseCounterExample {
	counterExample := &BaseCounterExample{
		Sender:       sender,
		Target:       target,
		Calldata:     calldata,
		ContractName: identified.Name(target),
	}
	if method := identified.Method(target, calldata); method != nil {
		counterExample.Signature = method.Sig
		if args, err := valuegeneration.DecodeCalldata(method, calldata); err == nil {
			counterExample.Args = formatArgs(args)
		}
	}
	return counterExample
}

// formatArgs renders decoded arguments as a comma separated list.
func formatArgs(args []any) string {
	encoded := make([]string, 0, len(args))
	for _, arg := range args {
		encoded = append(encoded, valuegeneration.EncodeValueToString(arg))
	}
	return strings.Join(encoded, ", ")
}

// String returns a readable rendering of the call.
func (c *BaseCounterExample) String() string {
	if c.Signature == "" {
		return fmt.Sprintf("sender=%s addr=%s calldata=%s", c.Sender.Hex(), c.Target.Hex(), c.Calldata)
	}
	name := c.ContractName
	if name == "" {
		name = c.Target.Hex()
	}
	method := c.Signature
	if i := strings.Index(method, "("); i >= 0 {
		method = method[:i]
	}
	return fmt.Sprintf("sender=%s addr=[%s]%s calldata=%s(%s)", c.Sender.Hex(), name, c.Target.Hex(), method, c.Args)
}

// CounterExample describes the calls reproducing a failure: a single call for fuzz tests, a sequence for invariants.
type CounterExample struct {
	// Single is set for fuzz test counterexamples.
	Single *BaseCounterExample

	// Sequence is set for invariant counterexamples.
	Sequence []*BaseCounterExample
}

// IsSequence indicates whether the counterexample is a call sequence.
func (c *CounterExample) IsSequence() bool {
	return c.Single == nil
}

// Calls returns the calls of the counterexample in order.
func (c *CounterExample) Calls() []*BaseCounterExample {
	if c.Single != nil {
		return []*BaseCounterExample{c.Single}
	}
	return c.Sequence
}

// StoredCalls converts the counterexample into its persisted form.
func (c *CounterExample) StoredCalls() []corpus.StoredCall {
	stored := make([]corpus.StoredCall, 0, len(c.Calls()))
	for _, call := range c.Calls() {
		stored = append(stored, corpus.StoredCall{Sender: call.Sender, Target: call.Target, Calldata: call.Calldata})
	}
	return stored
}

// String returns a readable rendering of the counterexample, one call per line for sequences.
func (c *CounterExample) String() string {
	if c.Single != nil {
		return c.Single.String()
	}
	lines := make([]string, 0, len(c.Sequence))
	for i, call := range c.Sequence {
		lines = append(lines, fmt.Sprintf("%d) %s", i+1, call))
	}
	return strings.Join(lines, "\n")
}

// TestResult describes the outcome of a single test function.
type TestResult struct {
	// Success indicates whether the test passed.
	Success bool

	// FailureReason describes why the test failed, or a note about how it passed.
	FailureReason *string

	// Rejected indicates the test aborted through an unsatisfied assumption. A rejected test does not fail the run
	// and is counted neither as passed nor as failed.
	Rejected bool

	// Counterexample describes the calls reproducing a fuzz or invariant failure.
	Counterexample *CounterExample

	// Logs describes the event logs emitted during setup and the test.
	Logs []*coretypes.Log

	// Kind describes the reporting shape of the result.
	Kind TestKind

	// Traces describes the traces collected during setup and the test.
	Traces []TraceEntry

	// Coverage describes the instructions executed by a unit test, if coverage collection is enabled.
	Coverage *types.Coverage

	// LabeledAddresses describes address labels set during setup and the test.
	LabeledAddresses map[common.Address]string

	// Duration describes how long the test took.
	Duration time.Duration
}

// Reason returns the failure reason, or an empty string if there is none.
func (r *TestResult) Reason() string {
	if r.FailureReason == nil {
		return ""
	}
	return *r.FailureReason
}

// newSetUpFailureResult creates the single synthetic result reported when a suite cannot run past setup.
func newSetUpFailureResult(reason string, setup *TestSetup) *TestResult {
	result := &TestResult{
		Success:          false,
		FailureReason:    &reason,
		Kind:             StandardTestKind(0),
		LabeledAddresses: make(map[common.Address]string),
	}
	if setup != nil {
		result.Logs = setup.Logs
		result.Traces = setup.Traces
		result.LabeledAddresses = setup.LabeledAddresses
	}
	return result
}

// SuiteResult describes the outcome of every test function of a contract.
type SuiteResult struct {
	// RunID identifies the run which produced the result.
	RunID uuid.UUID

	// ContractName describes the name of the test contract.
	ContractName string

	// Duration describes how long the suite took.
	Duration time.Duration

	// TestResults maps test signatures to their results.
	TestResults map[string]*TestResult

	// Warnings describes non-fatal problems found while running the suite.
	Warnings []string
}

// newSuiteResult creates a SuiteResult.
func newSuiteResult(runID uuid.UUID, contractName string, duration time.Duration, results map[string]*TestResult, warnings []string) *SuiteResult {
	return &SuiteResult{
		RunID:        runID,
		ContractName: contractName,
		Duration:     duration,
		TestResults:  results,
		Warnings:     warnings,
	}
}

// Signatures returns the signatures of every test result in ascending order.
func (s *SuiteResult) Signatures() []string {
	signatures := make([]string, 0, len(s.TestResults))
	for signature := range s.TestResults {
		signatures = append(signatures, signature)
	}
	sort.Strings(signatures)
	return signatures
}

// Successes returns the number of passing tests, excluding rejected ones.
func (s *SuiteResult) Successes() int {
	count := 0
	for _, result := range s.TestResults {
		if result.Success && !result.Rejected {
			count++
		}
	}
	return count
}

// Failures returns the number of failing tests.
func (s *SuiteResult) Failures() int {
	count := 0
	for _, result := range s.TestResults {
		if !result.Success {
			count++
		}
	}
	return count
}

// Rejections returns the number of tests rejected by an unsatisfied assumption.
func (s *SuiteResult) Rejections() int {
	count := 0
	for _, result := range s.TestResults {
		if result.Rejected {
			count++
		}
	}
	return count
}
