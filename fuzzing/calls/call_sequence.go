package calls

import (
	"fmt"
	"strings"

	"github.com/crytic/contest/chain/types"
	"github.com/crytic/contest/fuzzing/valuegeneration"
	"github.com/crytic/contest/logging"
	"github.com/crytic/contest/logging/colors"
	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/common/hexutil"
	"github.com/crytic/medusa-geth/crypto"
)

// CallSequence describes a sequence of calls sent to an executor.
type CallSequence []*CallSequenceElement

// Log returns a logging.LogBuffer that represents this call sequence. This buffer will be passed to the underlying
// logger which will format it accordingly for console or file.
func (cs CallSequence) Log() *logging.LogBuffer {
	buffer := logging.NewLogBuffer()
	if len(cs) == 0 {
		buffer.Append("<none>")
		return buffer
	}

	for i := 0; i < len(cs); i++ {
		buffer.Append(fmt.Sprintf("%d) ", i+1), colors.Bold, cs[i].String(), colors.Reset, "\n")
		if cs[i].Result != nil && cs[i].Result.Trace != nil {
			buffer.Append(cs[i].Result.Trace.String())
		}
	}
	return buffer
}

// String returns the string representation of this call sequence.
func (cs CallSequence) String() string {
	return cs.Log().String()
}

// Clone creates a copy of the underlying CallSequence. Execution results are not carried over.
func (cs CallSequence) Clone() CallSequence {
	r := make(CallSequence, len(cs))
	for i := 0; i < len(r); i++ {
		r[i] = cs[i].Clone()
	}
	return r
}

// Hash calculates a hash which represents the calls in the sequence. It does not hash execution results.
func (cs CallSequence) Hash() common.Hash {
	hashProvider := crypto.NewKeccakState()
	for _, cse := range cs {
		hashProvider.Write(cse.Sender.Bytes())
		hashProvider.Write(cse.Target.Bytes())
		hashProvider.Write(crypto.Keccak256(cse.Calldata))
	}
	return common.BytesToHash(hashProvider.Sum(nil))
}

// CallSequenceElement describes a single call in a call sequence targeting a specific contract.
type CallSequenceElement struct {
	// Sender describes the account the call is sent from.
	Sender common.Address `json:"sender"`

	// Target describes the contract the call is sent to.
	Target common.Address `json:"target"`

	// Calldata describes the input of the call, selector included.
	Calldata hexutil.Bytes `json:"calldata"`

	// ContractName describes the name of the targeted contract, if it was identified.
	ContractName string `json:"contractName,omitempty"`

	// Method describes the targeted method, if it was resolved.
	Method *abi.Method `json:"-"`

	// Result describes the result of executing this call, once executed.
	Result *types.CallResult `json:"-"`
}

// NewCallSequenceElement returns a new CallSequenceElement for the given call. contractName and method may be empty
// and nil when the target is unknown.
func NewCallSequenceElement(sender common.Address, target common.Address, calldata []byte, contractName string, method *abi.Method) *CallSequenceElement {
	return &CallSequenceElement{
		Sender:       sender,
		Target:       target,
		Calldata:     common.CopyBytes(calldata),
		ContractName: contractName,
		Method:       method,
	}
}

// Clone creates a copy of the underlying CallSequenceElement, without its execution result.
func (cse *CallSequenceElement) Clone() *CallSequenceElement {
	return NewCallSequenceElement(cse.Sender, cse.Target, cse.Calldata, cse.ContractName, cse.Method)
}

// Args decodes the arguments of the call. Returns nil if the method is unknown or the calldata does not decode.
func (cse *CallSequenceElement) Args() []any {
	if cse.Method == nil {
		return nil
	}
	args, err := valuegeneration.DecodeCalldata(cse.Method, cse.Calldata)
	if err != nil {
		return nil
	}
	return args
}

// String returns a displayable string representing the CallSequenceElement.
func (cse *CallSequenceElement) String() string {
	contractName := cse.ContractName
	if contractName == "" {
		contractName = cse.Target.Hex()
	}

	if cse.Method == nil {
		return fmt.Sprintf("%s.<unresolved method>(calldata=%s) (sender=%s)", contractName, cse.Calldata, cse.Sender.Hex())
	}

	argsText := "<unable to unpack args>"
	if args := cse.Args(); args != nil {
		rendered := make([]string, len(args))
		for i, arg := range args {
			rendered[i] = valuegeneration.EncodeValueToString(arg)
		}
		argsText = strings.Join(rendered, ", ")
	}
	return fmt.Sprintf("%s.%s(%s) (sender=%s)", contractName, cse.Method.Name, argsText, cse.Sender.Hex())
}
