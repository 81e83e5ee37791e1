package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/common/hexutil"
	"github.com/crytic/medusa-geth/core/vm"
)

// CallFrame describes a single message call or contract creation observed during execution, along with its nested
// sub-calls. The root frame of a transaction is its trace.
type CallFrame struct {
	// Kind describes the opcode which started this frame, e.g. CALL, STATICCALL, CREATE.
	Kind vm.OpCode `json:"kind"`

	// From describes the address of the caller.
	From common.Address `json:"from"`

	// To describes the address of the callee. For creations, this is the address of the deployed contract.
	To common.Address `json:"to"`

	// Input describes the calldata (or init bytecode for creations) provided to the frame.
	Input hexutil.Bytes `json:"input"`

	// Output describes the return or revert data produced by the frame.
	Output hexutil.Bytes `json:"output"`

	// Value describes the amount of ether transferred with the frame.
	Value *big.Int `json:"value"`

	// Gas describes the gas provided to the frame.
	Gas uint64 `json:"gas"`

	// GasUsed describes the gas consumed by the frame.
	GasUsed uint64 `json:"gasUsed"`

	// Reverted indicates whether this frame reverted.
	Reverted bool `json:"reverted"`

	// Err describes the error which ended the frame, if any.
	Err string `json:"error,omitempty"`

	// Depth describes the call depth of this frame, where the root frame has a depth of zero.
	Depth int `json:"depth"`

	// Children describes the sub-calls made by this frame, in the order they were made.
	Children []*CallFrame `json:"children,omitempty"`

	// Parent refers to the frame that made this call, or nil for the root frame.
	Parent *CallFrame `json:"-"`
}

// IsCreation indicates whether the frame represents a contract creation.
func (f *CallFrame) IsCreation() bool {
	return f.Kind == vm.CREATE || f.Kind == vm.CREATE2
}

// Walk visits this frame and every frame beneath it in depth-first call order.
func (f *CallFrame) Walk(fn func(frame *CallFrame)) {
	fn(f)
	for _, child := range f.Children {
		child.Walk(fn)
	}
}

// CreatedAddresses returns the addresses of every contract successfully created within this frame, in creation
// order.
func (f *CallFrame) CreatedAddresses() []common.Address {
	addresses := make([]common.Address, 0)
	f.Walk(func(frame *CallFrame) {
		if frame.IsCreation() && !frame.Reverted {
			addresses = append(addresses, frame.To)
		}
	})
	return addresses
}

// TouchedAddresses returns every distinct callee address observed within this frame, in first-seen order.
func (f *CallFrame) TouchedAddresses() []common.Address {
	seen := make(map[common.Address]struct{})
	addresses := make([]common.Address, 0)
	f.Walk(func(frame *CallFrame) {
		if _, ok := seen[frame.To]; !ok {
			seen[frame.To] = struct{}{}
			addresses = append(addresses, frame.To)
		}
	})
	return addresses
}

// String returns a compact, indented rendering of the call tree.
func (f *CallFrame) String() string {
	var b strings.Builder
	f.Walk(func(frame *CallFrame) {
		status := "ok"
		if frame.Reverted {
			status = "reverted"
		}
		b.WriteString(strings.Repeat("  ", frame.Depth))
		b.WriteString(fmt.Sprintf("[%d] %s %s -> %s (%s)\n", frame.GasUsed, frame.Kind, frame.From.Hex(), frame.To.Hex(), status))
	})
	return b.String()
}
