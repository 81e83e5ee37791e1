package types

import (
	"fmt"

	"github.com/crytic/medusa-geth/common"
	coretypes "github.com/crytic/medusa-geth/core/types"
)

// StateChangeset is an opaque view of the state produced by a call. It is only meaningful to the environment that
// produced it, which uses it to classify the call (see Executor.IsSuccess).
type StateChangeset any

// Snapshot is an opaque copy of an environment's backing state store, restored through the environment that
// produced it.
type Snapshot any

// DeployResult describes the outcome of a successful contract deployment.
type DeployResult struct {
	// Address describes where the contract was deployed.
	Address common.Address

	// Gas describes the gas used by the deployment, including the stipend.
	Gas uint64

	// Logs describes the event logs emitted by the deployment.
	Logs []*coretypes.Log

	// Trace describes the call tree of the deployment, if tracing was enabled.
	Trace *CallFrame

	// Labels describes the address labels set during the deployment.
	Labels map[common.Address]string
}

// CallResult describes the outcome of a message call. A reverted call is still a CallResult, not an error.
type CallResult struct {
	// Reverted indicates whether the call reverted.
	Reverted bool

	// Rejected indicates the call voluntarily aborted through the assume cheat code.
	Rejected bool

	// ReturnData describes the return data, or the revert data if the call reverted.
	ReturnData []byte

	// Reason describes the decoded revert reason, empty when the call did not revert.
	Reason string

	// Gas describes the gas used by the call, including the stipend.
	Gas uint64

	// Stipend describes the intrinsic gas cost of the call.
	Stipend uint64

	// Logs describes the event logs emitted by the call that were not discarded by a revert.
	Logs []*coretypes.Log

	// Trace describes the call tree of the call, if tracing was enabled.
	Trace *CallFrame

	// Labels describes the address labels set during the call.
	Labels map[common.Address]string

	// OverrideTrace describes the call tree of an additional call injected by a CallGenerator after this call.
	OverrideTrace *CallFrame

	// Coverage describes the instructions executed by the call, if coverage collection was enabled.
	Coverage *Coverage

	// StateChangeset describes the state after the call. For non-committing calls this is the only remaining view
	// of the call's effects.
	StateChangeset StateChangeset
}

// ExecutionError describes a deployment which reverted or halted. It carries the same diagnostics as a call result
// so callers can attribute the failure.
type ExecutionError struct {
	// Reason describes the decoded revert reason.
	Reason string

	// ReturnData describes the raw revert data.
	ReturnData []byte

	// Gas describes the gas used, including the stipend.
	Gas uint64

	// Stipend describes the intrinsic gas cost.
	Stipend uint64

	// Logs describes the event logs which were emitted before the failure.
	Logs []*coretypes.Log

	// Trace describes the call tree, if tracing was enabled.
	Trace *CallFrame

	// Labels describes the address labels set before the failure.
	Labels map[common.Address]string
}

// Error returns the revert reason of the execution.
func (e *ExecutionError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return fmt.Sprintf("execution reverted: %s", e.Reason)
}
