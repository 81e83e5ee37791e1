package types

import "github.com/crytic/medusa-geth/common"

// OverrideCall describes an additional call which an environment should execute on behalf of a CallGenerator.
type OverrideCall struct {
	// From describes the sender of the call.
	From common.Address

	// To describes the target of the call.
	To common.Address

	// Calldata describes the input of the call.
	Calldata []byte
}

// CallGenerator is consulted by an environment after every committing call while it is installed. It may return an
// additional call to execute immediately after, which lets invariant campaigns interleave unexpected calls with the
// sequence they are exploring.
type CallGenerator interface {
	// Next is called after a committing call from sender to target finished. It returns nil if no additional call
	// should be made.
	Next(sender common.Address, target common.Address) *OverrideCall
}
