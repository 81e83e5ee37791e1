package fuzzing

import (
	"math/big"

	"github.com/crytic/contest/chain/types"
	"github.com/crytic/medusa-geth/common"
	"github.com/holiman/uint256"
)

// Executor describes an execution environment tests run against. Implementations are not expected to be safe for
// concurrent use: every worker owns its own clone.
type Executor interface {
	// Deploy deploys init bytecode from the given sender, committing the result. A reverted deployment returns a
	// *types.ExecutionError; any other error is an environment fault.
	Deploy(from common.Address, code []byte, value *big.Int) (*types.DeployResult, error)

	// Call executes a message call. Reverts are reported through the result. State changes are kept only if commit
	// is set.
	Call(from common.Address, to common.Address, calldata []byte, value *big.Int, commit bool) (*types.CallResult, error)

	// SetBalance sets the balance of an account.
	SetBalance(address common.Address, amount *uint256.Int)

	// SetNonce sets the nonce of an account.
	SetNonce(address common.Address, nonce uint64)

	// SetTracing enables or disables call trace recording.
	SetTracing(enabled bool)

	// Tracing indicates whether call traces are being recorded.
	Tracing() bool

	// Snapshot returns a copy of the backing state store.
	Snapshot() types.Snapshot

	// Restore replaces the backing state store with the provided snapshot, which stays reusable.
	Restore(snapshot types.Snapshot)

	// IsSuccess classifies a call made to the test contract at address, inverting the outcome if shouldFail is set.
	IsSuccess(address common.Address, reverted bool, changeset types.StateChangeset, shouldFail bool) bool

	// DeployCreate2Deployer installs the deterministic CREATE2 deployment proxy.
	DeployCreate2Deployer() error

	// SetCallGenerator installs the generator consulted after every committing call. Nil uninstalls it.
	SetCallGenerator(generator types.CallGenerator)

	// Clone returns an independent environment with a copy of this environment's state.
	Clone() (Executor, error)
}
