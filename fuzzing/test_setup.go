package fuzzing

import (
	"errors"
	"fmt"

	"github.com/crytic/contest/chain/types"
	fuzzingutils "github.com/crytic/contest/fuzzing/utils"
	"github.com/crytic/contest/logging"
	"github.com/crytic/medusa-geth/common"
	coretypes "github.com/crytic/medusa-geth/core/types"
	"github.com/crytic/medusa-geth/crypto"
	"github.com/holiman/uint256"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// setUpSelector is the selector of the setUp hook.
var setUpSelector = crypto.Keccak256([]byte(fuzzingutils.SetUpHookName + "()"))[:types.SelectorLen]

// TestSetup describes the state of a test contract once it is deployed and set up. It is created once per suite
// and never mutated afterward; every test works on its own clone.
type TestSetup struct {
	// ContractAddress describes where the test contract was deployed. It is the zero address if setup failed.
	ContractAddress common.Address

	// Logs describes the event logs emitted by deployments and the setUp hook.
	Logs []*coretypes.Log

	// Traces describes the traces of deployments and the setUp hook.
	Traces []TraceEntry

	// LabeledAddresses describes address labels set by the setUp hook.
	LabeledAddresses map[common.Address]string

	// SetupFailed indicates whether a deployment or the setUp hook failed.
	SetupFailed bool

	// FailureReason describes why setup failed.
	FailureReason *string
}

// Clone returns a copy of the setup whose slices and maps can be extended independently.
func (s *TestSetup) Clone() *TestSetup {
	clone := *s
	clone.Logs = slices.Clone(s.Logs)
	clone.Traces = slices.Clone(s.Traces)
	clone.LabeledAddresses = maps.Clone(s.LabeledAddresses)
	if clone.LabeledAddresses == nil {
		clone.LabeledAddresses = make(map[common.Address]string)
	}
	return &clone
}

// AllTraces returns the traces of the setup without their kinds.
func (s *TestSetup) AllTraces() []*types.CallFrame {
	traces := make([]*types.CallFrame, 0, len(s.Traces))
	for _, entry := range s.Traces {
		traces = append(traces, entry.Trace)
	}
	return traces
}

// failedDeploymentSetup converts a reverted deployment into a failed TestSetup. The trace is tagged as a setup trace
// so it is reported.
func failedDeploymentSetup(executionErr *types.ExecutionError) *TestSetup {
	reason := executionErr.Reason
	setup := &TestSetup{
		Logs:             executionErr.Logs,
		Traces:           make([]TraceEntry, 0, 1),
		LabeledAddresses: executionErr.Labels,
		SetupFailed:      true,
		FailureReason:    &reason,
	}
	if executionErr.Trace != nil {
		setup.Traces = append(setup.Traces, TraceEntry{Kind: TraceKindSetup, Trace: executionErr.Trace})
	}
	return setup
}

// Setup deploys the libraries and the test contract from the runner's sender and optionally runs the setUp hook.
// Reverts are reported through TestSetup.SetupFailed; any other environment fault is returned as an error.
func (r *ContractRunner) Setup(runSetUpHook bool) (*TestSetup, error) {
	maxBalance := uint256.NewInt(0).SetAllOne()
	r.executor.SetBalance(r.sender, maxBalance)
	r.executor.SetBalance(types.Caller, maxBalance)

	// A nonce of 1 yields the same deployment addresses as DappTools.
	r.executor.SetNonce(r.sender, 1)

	traces := make([]TraceEntry, 0, len(r.libraries)+2)
	for _, code := range r.libraries {
		deployment, err := r.executor.Deploy(r.sender, code, nil)
		if err != nil {
			var executionErr *types.ExecutionError
			if errors.As(err, &executionErr) {
				return failedDeploymentSetup(executionErr), nil
			}
			return nil, fmt.Errorf("unrecoverable error: %w", err)
		}
		if deployment.Trace != nil {
			traces = append(traces, TraceEntry{Kind: TraceKindDeployment, Trace: deployment.Trace})
		}
	}

	deployment, err := r.executor.Deploy(r.sender, r.code, nil)
	if err != nil {
		var executionErr *types.ExecutionError
		if errors.As(err, &executionErr) {
			return failedDeploymentSetup(executionErr), nil
		}
		return nil, fmt.Errorf("unrecoverable error: %w", err)
	}
	if deployment.Trace != nil {
		traces = append(traces, TraceEntry{Kind: TraceKindDeployment, Trace: deployment.Trace})
	}

	r.executor.SetBalance(deployment.Address, r.initialBalance)
	r.executor.SetBalance(r.sender, r.initialBalance)

	if err := r.executor.DeployCreate2Deployer(); err != nil {
		return nil, err
	}

	setup := &TestSetup{
		ContractAddress:  deployment.Address,
		Logs:             slices.Clone(deployment.Logs),
		Traces:           traces,
		LabeledAddresses: make(map[common.Address]string),
	}
	if !runSetUpHook {
		return setup, nil
	}

	r.logger.Trace("Running ", fuzzingutils.SetUpHookName, " on ", r.name)
	result, err := r.executor.Call(r.sender, deployment.Address, setUpSelector, nil, true)
	if err != nil {
		reason := fmt.Sprintf("Setup failed: %v", err)
		r.logger.Error("setUp failed for ", r.name, err)
		setup.SetupFailed = true
		setup.FailureReason = &reason
		return setup, nil
	}

	setup.Logs = append(setup.Logs, result.Logs...)
	maps.Copy(setup.LabeledAddresses, result.Labels)
	if result.Trace != nil {
		setup.Traces = append(setup.Traces, TraceEntry{Kind: TraceKindSetup, Trace: result.Trace})
	}
	if result.Reverted {
		reason := fmt.Sprintf("Setup failed: %s", result.Reason)
		r.logger.Error("setUp failed for ", r.name, ": ", result.Reason, logging.StructuredLogInfo{"contract": deployment.Address.Hex()})
		setup.SetupFailed = true
		setup.FailureReason = &reason
	}
	return setup, nil
}
