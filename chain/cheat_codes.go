package chain

import (
	"math/big"

	"github.com/crytic/contest/chain/types"
	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core/tracing"
	"github.com/holiman/uint256"
)

// getStandardCheatCodeContract obtains a CheatCodeContract bound to the provided chain, implementing the cheat codes
// the test runner relies on.
func getStandardCheatCodeContract(chain *TestChain) (*CheatCodeContract, error) {
	contract := newCheatCodeContract(chain, types.CheatCodeAddress)

	// Define some basic ABI argument types
	typeAddress, err := abi.NewType("address", "", nil)
	if err != nil {
		return nil, err
	}
	typeBool, err := abi.NewType("bool", "", nil)
	if err != nil {
		return nil, err
	}
	typeBytes32, err := abi.NewType("bytes32", "", nil)
	if err != nil {
		return nil, err
	}
	typeString, err := abi.NewType("string", "", nil)
	if err != nil {
		return nil, err
	}
	typeUint256, err := abi.NewType("uint256", "", nil)
	if err != nil {
		return nil, err
	}

	// Assume: aborts the current call as rejected if the condition does not hold.
	contract.addMethod(
		"assume", abi.Arguments{{Type: typeBool}}, abi.Arguments{},
		func(chain *TestChain, args []any) ([]any, *cheatCodeRevert) {
			if !args[0].(bool) {
				return nil, &cheatCodeRevert{data: types.AssumeMagic}
			}
			return nil, nil
		},
	)

	// Label: attaches a human-readable name to an address, reported with test results.
	contract.addMethod(
		"label", abi.Arguments{{Type: typeAddress}, {Type: typeString}}, abi.Arguments{},
		func(chain *TestChain, args []any) ([]any, *cheatCodeRevert) {
			chain.labels[args[0].(common.Address)] = args[1].(string)
			return nil, nil
		},
	)

	// Deal: sets the balance of an address.
	contract.addMethod(
		"deal", abi.Arguments{{Type: typeAddress}, {Type: typeUint256}}, abi.Arguments{},
		func(chain *TestChain, args []any) ([]any, *cheatCodeRevert) {
			balance, overflow := uint256.FromBig(args[1].(*big.Int))
			if overflow {
				return nil, &cheatCodeRevert{}
			}
			chain.executingState.SetBalance(args[0].(common.Address), balance, tracing.BalanceChangeUnspecified)
			return nil, nil
		},
	)

	// Store: sets a storage slot of an account.
	contract.addMethod(
		"store", abi.Arguments{{Type: typeAddress}, {Type: typeBytes32}, {Type: typeBytes32}}, abi.Arguments{},
		func(chain *TestChain, args []any) ([]any, *cheatCodeRevert) {
			slot, value := args[1].([32]byte), args[2].([32]byte)
			chain.executingState.SetState(args[0].(common.Address), slot, value)
			return nil, nil
		},
	)

	// Load: reads a storage slot of an account.
	contract.addMethod(
		"load", abi.Arguments{{Type: typeAddress}, {Type: typeBytes32}}, abi.Arguments{{Type: typeBytes32}},
		func(chain *TestChain, args []any) ([]any, *cheatCodeRevert) {
			value := chain.executingState.GetState(args[0].(common.Address), args[1].([32]byte))
			return []any{[32]byte(value)}, nil
		},
	)

	return contract, nil
}
