package chain

import (
	"encoding/binary"

	"github.com/crytic/contest/chain/types"
	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core/vm"
)

// cheatCodeMethodHandler describes a function which handles a call to a cheat code method. It takes the chain
// being executed on and the unpacked input values. Returns unpacked output values, or a cheatCodeRevert if the call
// should revert.
type cheatCodeMethodHandler func(chain *TestChain, args []any) ([]any, *cheatCodeRevert)

// cheatCodeRevert describes a cheat code method which reverts with the given raw data.
type cheatCodeRevert struct {
	data []byte
}

// cheatCodeMethod defines the method information for a given cheat code.
type cheatCodeMethod struct {
	// method is the ABI method definition used to pack and unpack both input and output arguments.
	method abi.Method

	// handler represents the method handler to call with the unpacked input arguments
	handler cheatCodeMethodHandler
}

// CheatCodeContract is a pre-compiled contract whose methods are dispatched by selector to Go handlers which can
// inspect and patch the state of the chain they are bound to.
type CheatCodeContract struct {
	// address defines the address the cheat code contract is installed at.
	address common.Address

	// chain refers to the TestChain this contract is bound to.
	chain *TestChain

	// methodInfo describes a table of selectors (as little-endian uint32) to cheat code methods.
	methodInfo map[uint32]*cheatCodeMethod
}

// newCheatCodeContract returns a new CheatCodeContract bound to the provided chain.
func newCheatCodeContract(chain *TestChain, address common.Address) *CheatCodeContract {
	return &CheatCodeContract{
		address:    address,
		chain:      chain,
		methodInfo: make(map[uint32]*cheatCodeMethod),
	}
}

// Address returns the address the cheat code contract is installed at.
func (c *CheatCodeContract) Address() common.Address {
	return c.address
}

// addMethod adds a new method to the precompiled contract.
func (c *CheatCodeContract) addMethod(name string, inputs abi.Arguments, outputs abi.Arguments, handler cheatCodeMethodHandler) {
	if name == "" {
		panic("could not add method to precompiled cheatcode contract, empty method name provided")
	}
	if handler == nil {
		panic("could not add method to precompiled cheatcode contract, nil method handler provided")
	}

	method := abi.NewMethod(name, name, abi.Function, "external", false, false, inputs, outputs)
	c.methodInfo[binary.LittleEndian.Uint32(method.ID)] = &cheatCodeMethod{
		method:  method,
		handler: handler,
	}
}

// Name returns the name of the pre-compile.
func (c *CheatCodeContract) Name() string {
	return "CHEATCODES"
}

// RequiredGas determines the amount of gas necessary to execute the pre-compile with the given input data.
func (c *CheatCodeContract) RequiredGas(input []byte) uint64 {
	return 0
}

// Run executes the given pre-compile with the provided input data.
// Returns the output data from execution, or an error if one occurred.
func (c *CheatCodeContract) Run(input []byte) ([]byte, error) {
	if len(input) < types.SelectorLen {
		return []byte{}, vm.ErrExecutionReverted
	}

	methodInfo, ok := c.methodInfo[binary.LittleEndian.Uint32(input[:types.SelectorLen])]
	if !ok {
		return []byte{}, vm.ErrExecutionReverted
	}

	inputValues, err := methodInfo.method.Inputs.Unpack(input[types.SelectorLen:])
	if err != nil {
		return []byte{}, vm.ErrExecutionReverted
	}

	outputValues, revert := methodInfo.handler(c.chain, inputValues)
	if revert != nil {
		return revert.data, vm.ErrExecutionReverted
	}

	return methodInfo.method.Outputs.Pack(outputValues...)
}
