package calls

import (
	"fmt"
	"math/big"

	"github.com/crytic/contest/chain/types"
	"github.com/crytic/medusa-geth/common"
)

// CallExecutor describes the part of an execution environment needed to execute call sequences.
type CallExecutor interface {
	// Call executes a message call, committing its state changes if commit is set.
	Call(from common.Address, to common.Address, calldata []byte, value *big.Int, commit bool) (*types.CallResult, error)
}

// ExecuteCallSequenceFetchElementFunc describes a function that is called to obtain the next call sequence element to
// execute. It is given the current call index in the sequence.
// Returns the call sequence element to execute, or an error if one occurs. If the call sequence element is nil,
// it indicates the end of the sequence and execution breaks.
type ExecuteCallSequenceFetchElementFunc func(index int) (*CallSequenceElement, error)

// ExecuteCallSequenceExecutionCheckFunc describes a function that is called after each call is executed in a
// sequence. It is given the currently executed call sequence to this point.
// Returns a boolean indicating if the sequence execution should break, or an error if one occurs.
type ExecuteCallSequenceExecutionCheckFunc func(currentExecutedSequence CallSequence) (bool, error)

// ExecuteCallSequenceIteratively executes calls fetched one at a time, committing each, until the fetch function
// signals the end of the sequence or the check function requests a break.
// Returns the call sequence which was executed so far, even when an error occurs.
func ExecuteCallSequenceIteratively(executor CallExecutor, fetchElementFunc ExecuteCallSequenceFetchElementFunc, executionCheckFunc ExecuteCallSequenceExecutionCheckFunc) (CallSequence, error) {
	if fetchElementFunc == nil {
		return nil, fmt.Errorf("could not execute call sequence as the 'fetch element function' provided was nil")
	}

	var callSequenceExecuted CallSequence
	for i := 0; ; i++ {
		callSequenceElement, err := fetchElementFunc(i)
		if err != nil {
			return callSequenceExecuted, err
		}
		if callSequenceElement == nil {
			break
		}

		callSequenceElement.Result, err = executor.Call(callSequenceElement.Sender, callSequenceElement.Target, callSequenceElement.Calldata, nil, true)
		if err != nil {
			return callSequenceExecuted, fmt.Errorf("call %d of the sequence could not be executed: %w", i+1, err)
		}
		callSequenceExecuted = append(callSequenceExecuted, callSequenceElement)

		if executionCheckFunc != nil {
			shouldBreak, err := executionCheckFunc(callSequenceExecuted)
			if err != nil {
				return callSequenceExecuted, err
			}
			if shouldBreak {
				break
			}
		}
	}

	return callSequenceExecuted, nil
}

// ExecuteCallSequence executes every call of the provided sequence, committing each. The elements of the provided
// sequence are updated with their results.
// Returns the call sequence which was executed and an error if one occurs.
func ExecuteCallSequence(executor CallExecutor, callSequence CallSequence) (CallSequence, error) {
	fetchElementFunc := func(index int) (*CallSequenceElement, error) {
		if index < len(callSequence) {
			return callSequence[index], nil
		}
		return nil, nil
	}
	return ExecuteCallSequenceIteratively(executor, fetchElementFunc, nil)
}
