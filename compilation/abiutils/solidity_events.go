package abiutils

import (
	"fmt"
	"strings"

	"github.com/crytic/medusa-geth/accounts/abi"
	coreTypes "github.com/crytic/medusa-geth/core/types"
)

// UnpackEventAndValues takes a given contract ABI, and an emitted event log from VM, and attempts to find an
// event definition for the log, and unpack its input values.
// Returns the event definition and unpacked event input values, or nil for both if an event definition could not
// be resolved, or values could not be unpacked.
func UnpackEventAndValues(contractAbi *abi.ABI, eventLog *coreTypes.Log) (*abi.Event, []any) {
	// If no ABI was given, no event data can be extracted.
	if contractAbi == nil {
		return nil, nil
	}

	// Anonymous events carry no selector topic and cannot be resolved.
	if len(eventLog.Topics) == 0 {
		return nil, nil
	}
	event, err := contractAbi.EventByID(eventLog.Topics[0])
	if err != nil {
		return nil, nil
	}

	// Indexed arguments are read from topics and the rest from data. The ABI API only unpacks data, so indexed
	// arguments are re-declared as non-indexed and unpacked from the concatenated topics.
	// First, split our indexed and non-indexed arguments.
	var (
		unindexedInputArguments abi.Arguments
		indexedInputArguments   abi.Arguments
	)
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexedInputArguments = append(indexedInputArguments, abi.Argument{
				Name:    arg.Name,
				Type:    arg.Type,
				Indexed: false,
			})
		} else {
			unindexedInputArguments = append(unindexedInputArguments, arg)
		}
	}

	// Next, aggregate all topics into a single buffer, so we can treat it like data to unpack from.
	if len(eventLog.Topics) != len(indexedInputArguments)+1 {
		return nil, nil
	}
	var indexedInputData []byte
	for i := range indexedInputArguments {
		indexedInputData = append(indexedInputData, eventLog.Topics[i+1].Bytes()...)
	}

	// Unpacked our un-indexed values.
	unindexedInputValues, err := unindexedInputArguments.Unpack(eventLog.Data)
	if err != nil {
		return nil, nil
	}

	// Unpack our indexed values.
	indexedInputValues, err := indexedInputArguments.Unpack(indexedInputData)
	if err != nil {
		return nil, nil
	}

	// Now merge our indexed and non-indexed values according to the original order we had for event input arguments.
	var (
		currentIndexed   int
		currentUnindexed int
		inputValues      []any
	)
	for _, arg := range event.Inputs {
		if arg.Indexed {
			inputValues = append(inputValues, indexedInputValues[currentIndexed])
			currentIndexed++
		} else {
			inputValues = append(inputValues, unindexedInputValues[currentUnindexed])
			currentUnindexed++
		}
	}

	// Return our definition and data
	return event, inputValues
}

// FormatEventLog renders an event log using the first ABI that can resolve it, e.g. "Transfer(from=0x.., value=5)".
// Logs which cannot be resolved are rendered by their emitting address and raw topics.
func FormatEventLog(eventLog *coreTypes.Log, contractAbis ...*abi.ABI) string {
	for _, contractAbi := range contractAbis {
		event, values := UnpackEventAndValues(contractAbi, eventLog)
		if event == nil {
			continue
		}
		args := make([]string, 0, len(values))
		for i, value := range values {
			name := event.Inputs[i].Name
			if name == "" {
				name = fmt.Sprintf("arg%d", i)
			}
			args = append(args, fmt.Sprintf("%s=%v", name, value))
		}
		return fmt.Sprintf("%s(%s)", event.RawName, strings.Join(args, ", "))
	}
	topics := make([]string, 0, len(eventLog.Topics))
	for _, topic := range eventLog.Topics {
		topics = append(topics, topic.Hex())
	}
	return fmt.Sprintf("log@%s [%s] %x", eventLog.Address.Hex(), strings.Join(topics, ", "), eventLog.Data)
}
