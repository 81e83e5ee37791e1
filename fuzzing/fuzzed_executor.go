package fuzzing

import (
	"fmt"

	"github.com/crytic/contest/chain/types"
	"github.com/crytic/contest/fuzzing/contracts"
	"github.com/crytic/contest/fuzzing/valuegeneration"
	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	coretypes "github.com/crytic/medusa-geth/core/types"
	"golang.org/x/exp/maps"
)

// tooManyRejectsReason is reported when a fuzz test or campaign exceeds its reject limits.
const tooManyRejectsReason = "too many rejects"

// FuzzTestResult describes the outcome of fuzzing a single test function.
type FuzzTestResult struct {
	// Success indicates whether every case passed.
	Success bool

	// Reason describes why the test failed.
	Reason *string

	// Counterexample describes the first failing case.
	Counterexample *CounterExample

	// Cases describes the number of accepted cases executed, the failing case included.
	Cases int

	// Rejects describes the number of cases rejected through assumptions.
	Rejects int

	// Logs describes the event logs emitted by every executed case.
	Logs []*coretypes.Log

	// LabeledAddresses describes the address labels set by every executed case.
	LabeledAddresses map[common.Address]string

	// Trace describes the trace of the failing case, or of the last case if every case passed.
	Trace *types.CallFrame
}

// FuzzedExecutor runs a test function against generated inputs. Every case is executed without committing, so
// cases never observe each other.
type FuzzedExecutor struct {
	// executor describes the environment cases run against. It must be owned by this FuzzedExecutor.
	executor Executor

	// generator generates case inputs.
	generator valuegeneration.ValueGenerator

	// sender describes the account cases are sent from.
	sender common.Address

	// options describes the case budget and reject limits.
	options TestOptions

	// seeds describes calldata executed before any generated input, e.g. a persisted counterexample.
	seeds [][]byte
}

// NewFuzzedExecutor creates a FuzzedExecutor.
func NewFuzzedExecutor(executor Executor, generator valuegeneration.ValueGenerator, sender common.Address, options TestOptions) *FuzzedExecutor {
	return &FuzzedExecutor{
		executor:  executor,
		generator: generator,
		sender:    sender,
		options:   options,
	}
}

// WithSeeds sets calldata to execute before generated inputs. Seeds count toward the case budget.
func (e *FuzzedExecutor) WithSeeds(seeds [][]byte) *FuzzedExecutor {
	e.seeds = seeds
	return e
}

// Fuzz runs the test function at address until the case budget is spent, a case fails, or too many cases are
// rejected. The identified contracts are used to decode the counterexample.
func (e *FuzzedExecutor) Fuzz(method abi.Method, address common.Address, shouldFail bool, identified contracts.IdentifiedContracts) (*FuzzTestResult, error) {
	result := &FuzzTestResult{
		Success:          true,
		Logs:             make([]*coretypes.Log, 0),
		LabeledAddresses: make(map[common.Address]string),
	}

	localRejects, globalRejects := 0, 0
	seeds := e.seeds
	for result.Cases < e.options.FuzzRuns {
		var calldata []byte
		if len(seeds) > 0 {
			calldata, seeds = seeds[0], seeds[1:]
		} else {
			var err error
			calldata, _, err = valuegeneration.GenerateCalldata(e.generator, &method)
			if err != nil {
				return nil, fmt.Errorf("could not generate calldata for %s: %w", method.Sig, err)
			}
		}

		callResult, err := e.executor.Call(e.sender, address, calldata, nil, false)
		if err != nil {
			return nil, err
		}

		if callResult.Rejected {
			localRejects++
			globalRejects++
			result.Rejects++
			if localRejects > e.options.FuzzMaxLocalRejects || globalRejects > e.options.FuzzMaxGlobalRejects {
				reason := tooManyRejectsReason
				result.Success = false
				result.Reason = &reason
				return result, nil
			}
			continue
		}
		localRejects = 0
		result.Cases++

		result.Logs = append(result.Logs, callResult.Logs...)
		maps.Copy(result.LabeledAddresses, callResult.Labels)
		result.Trace = callResult.Trace

		if !e.executor.IsSuccess(address, callResult.Reverted, callResult.StateChangeset, shouldFail) {
			result.Success = false
			if callResult.Reason != "" {
				reason := callResult.Reason
				result.Reason = &reason
			}
			result.Counterexample = &CounterExample{
				Single: NewBaseCounterExample(e.sender, address, calldata, identified),
			}
			return result, nil
		}
	}
	return result, nil
}
