package contracts

import (
	"bytes"

	chainTypes "github.com/crytic/contest/chain/types"
	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// IdentifiedContract describes a deployed contract matched to a known contract definition.
type IdentifiedContract struct {
	// Name describes the name of the matched contract.
	Name string

	// Abi describes the interface of the matched contract.
	Abi *abi.ABI
}

// IdentifiedContracts maps deployed addresses to the contract definitions they were matched to.
type IdentifiedContracts map[common.Address]*IdentifiedContract

// IdentifyContracts matches every contract created within the provided traces against the known contracts.
func IdentifyContracts(known Contracts, traces ...*chainTypes.CallFrame) IdentifiedContracts {
	identified := make(IdentifiedContracts)
	for _, trace := range traces {
		identified.Identify(known, trace)
	}
	return identified
}

// Identify adds every contract created within the trace that matches a known contract. A nil trace is ignored.
func (ic IdentifiedContracts) Identify(known Contracts, trace *chainTypes.CallFrame) {
	if trace == nil {
		return
	}
	trace.Walk(func(frame *chainTypes.CallFrame) {
		if !frame.IsCreation() || frame.Reverted {
			return
		}
		if definition := known.MatchBytecode(frame.Output); definition != nil {
			ic[frame.To] = &IdentifiedContract{Name: definition.Name, Abi: &definition.Abi}
		}
	})
}

// Clone returns a shallow copy which can be extended without affecting the original.
func (ic IdentifiedContracts) Clone() IdentifiedContracts {
	return maps.Clone(ic)
}

// Addresses returns the identified addresses in ascending order.
func (ic IdentifiedContracts) Addresses() []common.Address {
	addresses := make([]common.Address, 0, len(ic))
	for address := range ic {
		addresses = append(addresses, address)
	}
	slices.SortFunc(addresses, func(a, b common.Address) int {
		return bytes.Compare(a.Bytes(), b.Bytes())
	})
	return addresses
}

// Name returns the name of the contract at the address, or an empty string if it was not identified.
func (ic IdentifiedContracts) Name(address common.Address) string {
	if contract, ok := ic[address]; ok {
		return contract.Name
	}
	return ""
}

// Method returns the method of the contract at the address matching the selector at the head of calldata, if any.
func (ic IdentifiedContracts) Method(address common.Address, calldata []byte) *abi.Method {
	contract, ok := ic[address]
	if !ok || len(calldata) < chainTypes.SelectorLen {
		return nil
	}
	method, err := contract.Abi.MethodById(calldata[:chainTypes.SelectorLen])
	if err != nil {
		return nil
	}
	return method
}
