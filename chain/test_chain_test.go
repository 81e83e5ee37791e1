package chain

import (
	"errors"
	"math/big"
	"testing"

	"github.com/crytic/contest/chain/types"
	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core/vm"
	"github.com/crytic/medusa-geth/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

// counterRuntime increments storage slot zero on every call and returns its new value.
var counterRuntime = []byte{
	byte(vm.PUSH1), 0x00, byte(vm.SLOAD),
	byte(vm.PUSH1), 0x01, byte(vm.ADD),
	byte(vm.DUP1), byte(vm.PUSH1), 0x00, byte(vm.SSTORE),
	byte(vm.PUSH1), 0x00, byte(vm.MSTORE),
	byte(vm.PUSH1), 0x20, byte(vm.PUSH1), 0x00, byte(vm.RETURN),
}

// zeroRuntime returns a single zero word on every call.
var zeroRuntime = []byte{
	byte(vm.PUSH1), 0x00, byte(vm.PUSH1), 0x00, byte(vm.MSTORE),
	byte(vm.PUSH1), 0x20, byte(vm.PUSH1), 0x00, byte(vm.RETURN),
}

// initCode wraps runtime bytecode in init code which copies it to memory and returns it.
func initCode(runtime []byte) []byte {
	code := []byte{
		byte(vm.PUSH1), byte(len(runtime)), byte(vm.DUP1),
		byte(vm.PUSH1), 0x00, byte(vm.PUSH1), 0x00, byte(vm.CODECOPY),
		byte(vm.PUSH1), 0x00, byte(vm.RETURN),
	}
	code[4] = byte(len(code))
	return append(code, runtime...)
}

// revertingCode reverts with the provided data on every execution.
func revertingCode(data []byte) []byte {
	code := []byte{
		byte(vm.PUSH1), byte(len(data)), byte(vm.PUSH1), 0x00, byte(vm.PUSH1), 0x00, byte(vm.CODECOPY),
		byte(vm.PUSH1), byte(len(data)), byte(vm.PUSH1), 0x00, byte(vm.REVERT),
	}
	code[3] = byte(len(code))
	return append(code, data...)
}

// cheatCodeCallerRuntime forwards the provided calldata to the cheat code address on every call, bubbling up the
// revert data if the cheat code reverts.
func cheatCodeCallerRuntime(calldata []byte) []byte {
	code := []byte{
		byte(vm.PUSH1), byte(len(calldata)), byte(vm.PUSH1), 0x00, byte(vm.PUSH1), 0x00, byte(vm.CODECOPY),
		byte(vm.PUSH1), 0x00, byte(vm.PUSH1), 0x00,
		byte(vm.PUSH1), byte(len(calldata)), byte(vm.PUSH1), 0x00,
		byte(vm.PUSH1), 0x00, byte(vm.PUSH20),
	}
	code = append(code, types.CheatCodeAddress.Bytes()...)
	code = append(code, byte(vm.GAS), byte(vm.CALL), byte(vm.ISZERO), byte(vm.PUSH1), 0x00, byte(vm.JUMPI), byte(vm.STOP))
	revertDest := len(code)
	code[revertDest-3] = byte(revertDest)
	code = append(code,
		byte(vm.JUMPDEST), byte(vm.RETURNDATASIZE), byte(vm.PUSH1), 0x00, byte(vm.PUSH1), 0x00, byte(vm.RETURNDATACOPY),
		byte(vm.RETURNDATASIZE), byte(vm.PUSH1), 0x00, byte(vm.REVERT),
	)
	code[3] = byte(len(code))
	return append(code, calldata...)
}

// errorString encodes revert data as produced by `revert(message)`.
func errorString(message string) []byte {
	data := common.FromHex("0x08c379a0")
	data = append(data, common.LeftPadBytes(big.NewInt(32).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(big.NewInt(int64(len(message))).Bytes(), 32)...)
	return append(data, common.RightPadBytes([]byte(message), 32)...)
}

// cheatCodeCalldata packs a call to a cheat code method.
func cheatCodeCalldata(t *testing.T, signature string, typeNames []string, values ...any) []byte {
	arguments := make(abi.Arguments, 0, len(typeNames))
	for _, typeName := range typeNames {
		argType, err := abi.NewType(typeName, "", nil)
		assert.NoError(t, err)
		arguments = append(arguments, abi.Argument{Type: argType})
	}
	packed, err := arguments.Pack(values...)
	assert.NoError(t, err)
	return append(crypto.Keccak256([]byte(signature))[:types.SelectorLen], packed...)
}

func newTestChain(t *testing.T) *TestChain {
	testChain, err := NewTestChain(nil)
	assert.NoError(t, err)
	return testChain
}

func deploy(t *testing.T, testChain *TestChain, runtime []byte) common.Address {
	deployment, err := testChain.Deploy(types.DefaultSender, initCode(runtime), nil)
	assert.NoError(t, err)
	return deployment.Address
}

func callCounter(t *testing.T, testChain *TestChain, counter common.Address, commit bool) uint64 {
	result, err := testChain.Call(types.DefaultSender, counter, nil, nil, commit)
	assert.NoError(t, err)
	assert.False(t, result.Reverted)
	return new(big.Int).SetBytes(result.ReturnData).Uint64()
}

// TestDeployAndCall tests that deployments land at nonce-derived addresses and that only committing calls keep
// their state changes.
func TestDeployAndCall(t *testing.T) {
	testChain := newTestChain(t)

	nonce := testChain.State().GetNonce(types.DefaultSender)
	counter := deploy(t, testChain, counterRuntime)
	assert.Equal(t, crypto.CreateAddress(types.DefaultSender, nonce), counter)
	assert.Equal(t, counterRuntime, testChain.State().GetCode(counter))

	assert.EqualValues(t, 1, callCounter(t, testChain, counter, false))
	assert.EqualValues(t, 1, callCounter(t, testChain, counter, false))
	assert.EqualValues(t, 1, callCounter(t, testChain, counter, true))
	assert.EqualValues(t, 2, callCounter(t, testChain, counter, true))
	assert.EqualValues(t, 3, callCounter(t, testChain, counter, false))
}

// TestCallGasIncludesStipend tests that the reported gas of a call covers its intrinsic cost.
func TestCallGasIncludesStipend(t *testing.T) {
	testChain := newTestChain(t)
	counter := deploy(t, testChain, counterRuntime)

	result, err := testChain.Call(types.DefaultSender, counter, []byte{0x01, 0x00}, nil, false)
	assert.NoError(t, err)
	assert.EqualValues(t, calculateStipend([]byte{0x01, 0x00}, false), result.Stipend)
	assert.Greater(t, result.Gas, result.Stipend)
}

// TestRevertReasons tests that reverting calls and deployments report their decoded reason.
func TestRevertReasons(t *testing.T) {
	testChain := newTestChain(t)
	reverter := deploy(t, testChain, revertingCode(errorString("boom")))

	result, err := testChain.Call(types.DefaultSender, reverter, nil, nil, true)
	assert.NoError(t, err)
	assert.True(t, result.Reverted)
	assert.False(t, result.Rejected)
	assert.Equal(t, "boom", result.Reason)

	_, err = testChain.Deploy(types.DefaultSender, revertingCode(errorString("constructor")), nil)
	var executionErr *types.ExecutionError
	assert.True(t, errors.As(err, &executionErr))
	assert.Equal(t, "constructor", executionErr.Reason)
	assert.Equal(t, "execution reverted: constructor", executionErr.Error())
}

// TestSnapshotRestore tests that a snapshot can be restored any number of times.
func TestSnapshotRestore(t *testing.T) {
	testChain := newTestChain(t)
	counter := deploy(t, testChain, counterRuntime)
	snapshot := testChain.Snapshot()

	assert.EqualValues(t, 1, callCounter(t, testChain, counter, true))
	assert.EqualValues(t, 2, callCounter(t, testChain, counter, true))

	testChain.Restore(snapshot)
	assert.EqualValues(t, 1, callCounter(t, testChain, counter, true))

	testChain.Restore(snapshot)
	assert.EqualValues(t, 1, callCounter(t, testChain, counter, true))
}

// TestCloneIsIndependent tests that calls on a clone do not affect the original environment or vice versa.
func TestCloneIsIndependent(t *testing.T) {
	testChain := newTestChain(t)
	counter := deploy(t, testChain, counterRuntime)
	assert.EqualValues(t, 1, callCounter(t, testChain, counter, true))

	executor, err := testChain.Clone()
	assert.NoError(t, err)
	clone := executor.(*TestChain)

	assert.EqualValues(t, 2, callCounter(t, clone, counter, true))
	assert.EqualValues(t, 3, callCounter(t, clone, counter, true))
	assert.EqualValues(t, 2, callCounter(t, testChain, counter, true))
}

// TestSetBalanceAndNonce tests direct account mutations.
func TestSetBalanceAndNonce(t *testing.T) {
	testChain := newTestChain(t)
	account := common.HexToAddress("0x10000")

	testChain.SetBalance(account, uint256.NewInt(1234))
	testChain.SetNonce(account, 7)
	assert.EqualValues(t, 1234, testChain.State().GetBalance(account).Uint64())
	assert.EqualValues(t, 7, testChain.State().GetNonce(account))

	deployment, err := testChain.Deploy(account, initCode(zeroRuntime), nil)
	assert.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(account, 7), deployment.Address)
}

// TestIsSuccess tests call classification, including soft failures and inverted expectations.
func TestIsSuccess(t *testing.T) {
	testChain := newTestChain(t)
	passing := deploy(t, testChain, zeroRuntime)

	result, err := testChain.Call(types.DefaultSender, passing, nil, nil, false)
	assert.NoError(t, err)
	assert.True(t, testChain.IsSuccess(passing, result.Reverted, result.StateChangeset, false))
	assert.False(t, testChain.IsSuccess(passing, result.Reverted, result.StateChangeset, true))
	assert.False(t, testChain.IsSuccess(passing, true, nil, false))
	assert.True(t, testChain.IsSuccess(passing, true, nil, true))

	// Any call to the counter returns a non-zero word, including `failed()`.
	failing := deploy(t, testChain, counterRuntime)
	assert.False(t, testChain.IsSuccess(failing, false, testChain.State().Copy(), false))

	failedState := testChain.State().Copy()
	failedState.SetState(types.CheatCodeAddress, globalFailureSlot, common.BigToHash(big.NewInt(1)))
	assert.False(t, testChain.IsSuccess(passing, false, failedState, false))
	assert.True(t, testChain.IsSuccess(passing, false, testChain.State().Copy(), false))
}

// TestDeployCreate2Deployer tests that the deployment proxy is installed once and that foreign code is detected.
func TestDeployCreate2Deployer(t *testing.T) {
	testChain := newTestChain(t)
	assert.NoError(t, testChain.DeployCreate2Deployer())
	assert.Equal(t, create2DeployerRuntimeCode, testChain.State().GetCode(types.DefaultCreate2Deployer))
	assert.NoError(t, testChain.DeployCreate2Deployer())

	other := newTestChain(t)
	other.State().SetCode(types.DefaultCreate2Deployer, []byte{0x00})
	assert.Error(t, other.DeployCreate2Deployer())
}

// TestCheatCodes tests the cheat codes through a contract calling the pre-compile.
func TestCheatCodes(t *testing.T) {
	testChain := newTestChain(t)

	assumer := deploy(t, testChain, cheatCodeCallerRuntime(cheatCodeCalldata(t, "assume(bool)", []string{"bool"}, false)))
	result, err := testChain.Call(types.DefaultSender, assumer, nil, nil, false)
	assert.NoError(t, err)
	assert.True(t, result.Reverted)
	assert.True(t, result.Rejected)

	labeled := common.HexToAddress("0xbeef")
	labeler := deploy(t, testChain, cheatCodeCallerRuntime(cheatCodeCalldata(t, "label(address,string)", []string{"address", "string"}, labeled, "alice")))
	result, err = testChain.Call(types.DefaultSender, labeler, nil, nil, false)
	assert.NoError(t, err)
	assert.False(t, result.Reverted)
	assert.Equal(t, "alice", result.Labels[labeled])

	dealer := deploy(t, testChain, cheatCodeCallerRuntime(cheatCodeCalldata(t, "deal(address,uint256)", []string{"address", "uint256"}, labeled, big.NewInt(5000))))
	result, err = testChain.Call(types.DefaultSender, dealer, nil, nil, true)
	assert.NoError(t, err)
	assert.False(t, result.Reverted)
	assert.EqualValues(t, 5000, testChain.State().GetBalance(labeled).Uint64())

	slot, value := common.HexToHash("0x01"), common.HexToHash("0x2a")
	storer := deploy(t, testChain, cheatCodeCallerRuntime(cheatCodeCalldata(t, "store(address,bytes32,bytes32)", []string{"address", "bytes32", "bytes32"}, labeled, [32]byte(slot), [32]byte(value))))
	result, err = testChain.Call(types.DefaultSender, storer, nil, nil, true)
	assert.NoError(t, err)
	assert.False(t, result.Reverted)
	assert.Equal(t, value, testChain.State().GetState(labeled, slot))

	unknown := deploy(t, testChain, cheatCodeCallerRuntime([]byte{0xde, 0xad, 0xbe, 0xef}))
	result, err = testChain.Call(types.DefaultSender, unknown, nil, nil, false)
	assert.NoError(t, err)
	assert.True(t, result.Reverted)
	assert.False(t, result.Rejected)
}

// TestTracing tests that traces are only recorded while tracing is enabled.
func TestTracing(t *testing.T) {
	testChain := newTestChain(t)
	counter := deploy(t, testChain, counterRuntime)

	result, err := testChain.Call(types.DefaultSender, counter, nil, nil, false)
	assert.NoError(t, err)
	assert.Nil(t, result.Trace)

	testChain.SetTracing(true)
	assert.True(t, testChain.Tracing())
	result, err = testChain.Call(types.DefaultSender, counter, nil, nil, false)
	assert.NoError(t, err)
	if assert.NotNil(t, result.Trace) {
		assert.Equal(t, types.DefaultSender, result.Trace.From)
		assert.Equal(t, counter, result.Trace.To)
		assert.False(t, result.Trace.Reverted)
		assert.Contains(t, result.Trace.String(), counter.Hex())
	}

	deployment, err := testChain.Deploy(types.DefaultSender, initCode(zeroRuntime), nil)
	assert.NoError(t, err)
	if assert.NotNil(t, deployment.Trace) {
		assert.True(t, deployment.Trace.IsCreation())
		assert.Equal(t, []common.Address{deployment.Address}, deployment.Trace.CreatedAddresses())
	}
}

// onceCallGenerator returns its call the first time it is consulted.
type onceCallGenerator struct {
	call     *types.OverrideCall
	consumed bool
}

func (g *onceCallGenerator) Next(sender common.Address, target common.Address) *types.OverrideCall {
	if g.consumed {
		return nil
	}
	g.consumed = true
	return g.call
}

// TestCallGenerator tests that an installed generator injects its call after committing calls only.
func TestCallGenerator(t *testing.T) {
	testChain := newTestChain(t)
	testChain.SetTracing(true)
	counter := deploy(t, testChain, counterRuntime)

	generator := &onceCallGenerator{call: &types.OverrideCall{From: types.DefaultSender, To: counter}}
	testChain.SetCallGenerator(generator)

	// Non-committing calls never consult the generator.
	assert.EqualValues(t, 1, callCounter(t, testChain, counter, false))
	assert.False(t, generator.consumed)

	result, err := testChain.Call(types.DefaultSender, counter, nil, nil, true)
	assert.NoError(t, err)
	assert.True(t, generator.consumed)
	assert.NotNil(t, result.OverrideTrace)

	testChain.SetCallGenerator(nil)
	assert.EqualValues(t, 3, callCounter(t, testChain, counter, true))
}
