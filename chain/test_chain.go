package chain

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/crytic/contest/chain/config"
	"github.com/crytic/contest/chain/types"
	"github.com/crytic/contest/compilation/abiutils"
	"github.com/crytic/contest/fuzzing"
	"github.com/crytic/contest/logging"
	"github.com/crytic/contest/utils"
	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core"
	"github.com/crytic/medusa-geth/core/rawdb"
	gethState "github.com/crytic/medusa-geth/core/state"
	"github.com/crytic/medusa-geth/core/tracing"
	gethTypes "github.com/crytic/medusa-geth/core/types"
	"github.com/crytic/medusa-geth/core/vm"
	"github.com/crytic/medusa-geth/crypto"
	"github.com/crytic/medusa-geth/params"
	"github.com/crytic/medusa-geth/triedb"
	"github.com/crytic/medusa-geth/triedb/hashdb"
	"github.com/holiman/uint256"
	"golang.org/x/exp/slices"
)

var _ fuzzing.Executor = (*TestChain)(nil)

// TestChain is an in-memory EVM execution environment. Every message executes against a single fixed block, either
// committing its state changes or discarding them. A TestChain is not safe for concurrent use; workers should each
// own a clone.
type TestChain struct {
	// config describes the configuration of this environment.
	config *config.TestChainConfig

	// chainConfig describes the go-ethereum chain configuration (fork rules, chain ID). It is shared read-only
	// between clones.
	chainConfig *params.ChainConfig

	// vmConfigExtensions describes the medusa-geth EVM extensions, including the cheat code pre-compile.
	vmConfigExtensions *vm.ConfigExtensions

	// state describes the backing state store.
	state *gethState.StateDB

	// executingState describes the state the current message executes over. Cheat codes mutate this state.
	executingState *gethState.StateDB

	// tracingEnabled indicates whether call traces should be recorded for every message.
	tracingEnabled bool

	// callGenerator describes the generator consulted after every committing call, if any.
	callGenerator types.CallGenerator

	// labels describes the address labels set by the message currently executing.
	labels map[common.Address]string

	// txCounter is used to derive a unique transaction hash for every executed message.
	txCounter uint64

	// contractAbis describes the ABIs used to decode custom errors in revert data.
	contractAbis []*abi.ABI

	// logger describes the chain's sub-logger.
	logger *logging.Logger
}

// NewTestChain creates an empty in-memory environment using the provided configuration. A nil configuration
// selects the defaults.
func NewTestChain(testChainConfig *config.TestChainConfig) (*TestChain, error) {
	var err error
	if testChainConfig == nil {
		testChainConfig, err = config.DefaultTestChainConfig()
		if err != nil {
			return nil, err
		}
	}

	// Copy our chain config, so it is not shared with go-ethereum's package-level test config.
	chainConfig, err := utils.CopyChainConfig(params.TestChainConfig)
	if err != nil {
		return nil, err
	}
	forkTime := uint64(0)
	chainConfig.ChainID = big.NewInt(types.DevChainID)
	chainConfig.ShanghaiTime = &forkTime
	chainConfig.CancunTime = &forkTime
	chainConfig.PragueTime = &forkTime
	chainConfig.BlobScheduleConfig = params.DefaultBlobSchedule

	// Create an in-memory database and an empty state over it.
	db := rawdb.NewMemoryDatabase()
	trieDB := triedb.NewDatabase(db, &triedb.Config{HashDB: hashdb.Defaults})
	stateDB, err := gethState.New(gethTypes.EmptyRootHash, gethState.NewDatabase(trieDB, nil))
	if err != nil {
		return nil, err
	}

	return newTestChainWithState(testChainConfig, chainConfig, stateDB)
}

// newTestChainWithState creates a TestChain over an existing state, installing the cheat code pre-compile if it is
// enabled.
func newTestChainWithState(testChainConfig *config.TestChainConfig, chainConfig *params.ChainConfig, stateDB *gethState.StateDB) (*TestChain, error) {
	chain := &TestChain{
		config:             testChainConfig,
		chainConfig:        chainConfig,
		vmConfigExtensions: testChainConfig.GetVMConfigExtensions(),
		state:              stateDB,
		labels:             make(map[common.Address]string),
		logger:             logging.GlobalLogger.NewSubLogger("module", logging.CHAIN_SERVICE),
	}

	// Cheat codes are pre-compiles, but code must still exist at their address, because contracts compiled with
	// newer solidity versions perform code size checks prior to external calls.
	if testChainConfig.CheatCodeConfig.CheatCodesEnabled {
		cheatCodeContract, err := getStandardCheatCodeContract(chain)
		if err != nil {
			return nil, err
		}
		chain.vmConfigExtensions.AdditionalPrecompiles[cheatCodeContract.Address()] = cheatCodeContract
		if len(stateDB.GetCode(cheatCodeContract.Address())) == 0 {
			stateDB.SetCode(cheatCodeContract.Address(), []byte{0xFF})
			stateDB.Finalise(true)
		}
	}
	return chain, nil
}

// SetContractABIs sets the ABIs used to decode custom errors from revert data.
func (t *TestChain) SetContractABIs(contractAbis []*abi.ABI) {
	t.contractAbis = contractAbis
}

// State returns the backing state store of the environment.
func (t *TestChain) State() *gethState.StateDB {
	return t.state
}

// execution describes the raw outcome of a single message.
type execution struct {
	result   *core.ExecutionResult
	logs     []*gethTypes.Log
	labels   map[common.Address]string
	tracer   *callTracer
	stipend  uint64
	reason   string
	rejected bool
}

// execute applies a message over the provided state. The state is left modified; callers decide whether to keep
// or discard the changes. Returns an error only if the message could not be applied at all.
func (t *TestChain) execute(stateDB *gethState.StateDB, from common.Address, to *common.Address, data []byte, value *big.Int) (*execution, error) {
	if value == nil {
		value = new(big.Int)
	}

	// Every message gets a unique hash so its logs can be fetched from the state afterward.
	t.txCounter++
	txHash := crypto.Keccak256Hash(from.Bytes(), new(big.Int).SetUint64(t.txCounter).Bytes())
	stateDB.SetTxContext(txHash, 0)

	vmConfig := vm.Config{
		NoBaseFee:        true,
		ConfigExtensions: t.vmConfigExtensions,
	}
	var tracer *callTracer
	if t.tracingEnabled || t.config.CoverageEnabled {
		tracer = newCallTracer(t.config.CoverageEnabled)
		vmConfig.Tracer = tracer.hooks()
	}
	evm := vm.NewEVM(newTestChainBlockContext(t), stateDB, t.chainConfig, vmConfig)

	msg := &core.Message{
		To:         to,
		From:       from,
		Nonce:      stateDB.GetNonce(from),
		Value:      value,
		GasLimit:   t.config.GasLimit,
		GasPrice:   big.NewInt(0),
		GasFeeCap:  big.NewInt(0),
		GasTipCap:  big.NewInt(0),
		Data:       data,
		AccessList: nil,
	}

	t.labels = make(map[common.Address]string)
	t.executingState = stateDB
	gasPool := new(core.GasPool).AddGas(math.MaxUint64)
	result, err := core.ApplyMessage(evm, msg, gasPool)
	t.executingState = nil
	if err != nil {
		return nil, fmt.Errorf("could not apply message from %v: %w", from, err)
	}

	exec := &execution{
		result:  result,
		logs:    slices.Clone(stateDB.GetLogs(txHash, t.config.BlockNumber, common.Hash{})),
		labels:  t.labels,
		tracer:  tracer,
		stipend: calculateStipend(data, to == nil),
	}
	if result.Failed() {
		if errors.Is(result.Err, vm.ErrExecutionReverted) {
			exec.rejected = bytes.Equal(result.ReturnData, types.AssumeMagic)
			exec.reason = abiutils.DecodeRevertReason(result.ReturnData, t.contractAbis...)
		} else {
			exec.reason = "EvmError: " + result.Err.Error()
		}
	}
	return exec, nil
}

// trace returns the recorded call tree of the execution if tracing is enabled.
func (e *execution) trace(tracingEnabled bool) *types.CallFrame {
	if e.tracer == nil || !tracingEnabled {
		return nil
	}
	return e.tracer.root
}

// coverage returns the recorded coverage of the execution, if any.
func (e *execution) coverage() *types.Coverage {
	if e.tracer == nil {
		return nil
	}
	return e.tracer.coverage
}

// calculateStipend returns the intrinsic gas cost of a message with the given data.
func calculateStipend(data []byte, isCreate bool) uint64 {
	gas := params.TxGas
	if isCreate {
		gas = params.TxGasContractCreation
		gas += params.InitCodeWordGas * ((uint64(len(data)) + 31) / 32)
	}
	for _, b := range data {
		if b == 0 {
			gas += params.TxDataZeroGas
		} else {
			gas += params.TxDataNonZeroGasEIP2028
		}
	}
	return gas
}

// Deploy deploys the provided init bytecode from the given sender, committing the result. A reverted or halted
// deployment returns a *types.ExecutionError.
func (t *TestChain) Deploy(from common.Address, code []byte, value *big.Int) (*types.DeployResult, error) {
	nonce := t.state.GetNonce(from)
	exec, err := t.execute(t.state, from, nil, code, value)
	if err != nil {
		return nil, err
	}
	t.state.Finalise(true)

	if exec.result.Failed() {
		return nil, &types.ExecutionError{
			Reason:     exec.reason,
			ReturnData: exec.result.ReturnData,
			Gas:        exec.result.UsedGas,
			Stipend:    exec.stipend,
			Logs:       exec.logs,
			Trace:      exec.trace(t.tracingEnabled),
			Labels:     exec.labels,
		}
	}

	return &types.DeployResult{
		Address: crypto.CreateAddress(from, nonce),
		Gas:     exec.result.UsedGas,
		Logs:    exec.logs,
		Trace:   exec.trace(t.tracingEnabled),
		Labels:  exec.labels,
	}, nil
}

// Call executes a message call. If commit is false, every state change is discarded once the call returns and the
// only view of its effects is the returned StateChangeset.
func (t *TestChain) Call(from common.Address, to common.Address, calldata []byte, value *big.Int, commit bool) (*types.CallResult, error) {
	snapshot := t.state.Snapshot()
	exec, err := t.execute(t.state, from, &to, calldata, value)
	if err != nil {
		t.state.RevertToSnapshot(snapshot)
		return nil, err
	}

	result := &types.CallResult{
		Reverted:   exec.result.Failed(),
		Rejected:   exec.rejected,
		ReturnData: exec.result.ReturnData,
		Reason:     exec.reason,
		Gas:        exec.result.UsedGas,
		Stipend:    exec.stipend,
		Logs:       exec.logs,
		Trace:      exec.trace(t.tracingEnabled),
		Labels:     exec.labels,
		Coverage:   exec.coverage(),
	}

	if !commit {
		// Only successful calls are inspected for soft failures, so reverted calls need no changeset.
		if !result.Reverted {
			result.StateChangeset = t.state.Copy()
		}
		t.state.RevertToSnapshot(snapshot)
		return result, nil
	}

	t.state.Finalise(true)
	result.StateChangeset = t.state
	if t.callGenerator != nil {
		t.executeOverrideCall(from, to, result)
	}
	return result, nil
}

// executeOverrideCall consults the installed call generator after a committing call and executes the additional
// call it returns, if any. The override's logs are appended to the result and its trace is recorded separately.
func (t *TestChain) executeOverrideCall(from common.Address, to common.Address, result *types.CallResult) {
	override := t.callGenerator.Next(from, to)
	if override == nil {
		return
	}

	exec, err := t.execute(t.state, override.From, &override.To, override.Calldata, nil)
	if err != nil {
		t.logger.Debug("Override call could not be applied: ", err)
		return
	}
	t.state.Finalise(true)
	if !exec.result.Failed() {
		result.Logs = append(result.Logs, exec.logs...)
	}
	result.OverrideTrace = exec.trace(t.tracingEnabled)
}

// SetBalance sets the balance of an account.
func (t *TestChain) SetBalance(address common.Address, amount *uint256.Int) {
	t.state.SetBalance(address, amount, tracing.BalanceChangeUnspecified)
	t.state.Finalise(true)
}

// SetNonce sets the nonce of an account.
func (t *TestChain) SetNonce(address common.Address, nonce uint64) {
	t.state.SetNonce(address, nonce, tracing.NonceChangeUnspecified)
	t.state.Finalise(true)
}

// SetTracing enables or disables call trace recording.
func (t *TestChain) SetTracing(enabled bool) {
	t.tracingEnabled = enabled
}

// Tracing indicates whether call traces are being recorded.
func (t *TestChain) Tracing() bool {
	return t.tracingEnabled
}

// SetCallGenerator installs the generator consulted after every committing call. A nil generator uninstalls it.
func (t *TestChain) SetCallGenerator(generator types.CallGenerator) {
	t.callGenerator = generator
}

// Snapshot returns a copy of the backing state store.
func (t *TestChain) Snapshot() types.Snapshot {
	return t.state.Copy()
}

// Restore replaces the backing state store with a copy of the provided snapshot. The snapshot remains reusable.
func (t *TestChain) Restore(snapshot types.Snapshot) {
	stateDB, ok := snapshot.(*gethState.StateDB)
	if !ok {
		t.logger.Panic("could not restore snapshot of unexpected type ", fmt.Sprintf("%T", snapshot))
	}
	t.state = stateDB.Copy()
}

// IsSuccess classifies a call. A call which did not revert can still fail softly, either through the global failure
// slot of the cheat code address or through the contract's own `failed()` view. The result is inverted when the
// call was expected to fail.
func (t *TestChain) IsSuccess(address common.Address, reverted bool, changeset types.StateChangeset, shouldFail bool) bool {
	success := !reverted
	if success {
		if stateDB, ok := changeset.(*gethState.StateDB); ok && stateDB != nil {
			success = !t.hasFailed(stateDB, address)
		}
	}
	return success != shouldFail
}

// hasFailed checks whether a soft failure was recorded in the provided state.
func (t *TestChain) hasFailed(stateDB *gethState.StateDB, address common.Address) bool {
	if stateDB.GetState(types.CheatCodeAddress, globalFailureSlot) != (common.Hash{}) {
		return true
	}
	if len(stateDB.GetCode(address)) == 0 {
		return false
	}

	probe := stateDB.Copy()
	exec, err := t.execute(probe, types.DefaultSender, &address, failedSelector, nil)
	if err != nil || exec.result.Failed() || len(exec.result.ReturnData) != 32 {
		return false
	}
	return new(big.Int).SetBytes(exec.result.ReturnData).Sign() != 0
}

// DeployCreate2Deployer installs the deterministic deployment proxy. Returns an error if different code already
// exists at its address.
func (t *TestChain) DeployCreate2Deployer() error {
	existing := t.state.GetCode(types.DefaultCreate2Deployer)
	if len(existing) == 0 {
		t.state.SetCode(types.DefaultCreate2Deployer, create2DeployerRuntimeCode)
		t.state.Finalise(true)
		return nil
	}
	if !bytes.Equal(existing, create2DeployerRuntimeCode) {
		return fmt.Errorf("CREATE2 deployer at %v has unexpected code", types.DefaultCreate2Deployer)
	}
	return nil
}

// Clone creates an independent environment with a copy of this environment's state and settings. The call generator
// is not carried over.
func (t *TestChain) Clone() (fuzzing.Executor, error) {
	clone, err := newTestChainWithState(t.config, t.chainConfig, t.state.Copy())
	if err != nil {
		return nil, err
	}
	clone.tracingEnabled = t.tracingEnabled
	clone.contractAbis = t.contractAbis
	return clone, nil
}
