package fuzzing

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/crytic/contest/chain/types"
	compilationTypes "github.com/crytic/contest/compilation/types"
	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core/vm"
	"github.com/crytic/medusa-geth/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/maps"
)

// fakeState is the storage of the fake environment: named integers and addresses per contract.
type fakeState struct {
	ints      map[string]int64
	addresses map[string]common.Address
	failed    bool
}

func newFakeState() *fakeState {
	return &fakeState{ints: make(map[string]int64), addresses: make(map[string]common.Address)}
}

func (s *fakeState) clone() *fakeState {
	return &fakeState{ints: maps.Clone(s.ints), addresses: maps.Clone(s.addresses), failed: s.failed}
}

func slot(address common.Address, name string) string {
	return address.Hex() + ":" + name
}

// fakeOutcome describes the outcome of a fake method.
type fakeOutcome struct {
	reverted bool
	rejected bool
	reason   string
	ret      []byte
	labels   map[common.Address]string
}

func ok() fakeOutcome { return fakeOutcome{} }
func revert(reason string) fakeOutcome { return fakeOutcome{reverted: true, reason: reason} }
func reject() fakeOutcome { return fakeOutcome{reverted: true, rejected: true, ret: types.AssumeMagic} }
func returnsBool(value bool) fakeOutcome {
	ret := make([]byte, 32)
	if value {
		ret[31] = 1
	}
	return fakeOutcome{ret: ret}
}

// fakeCall gives a fake method access to the environment it runs in.
type fakeCall struct {
	executor *fakeExecutor
	state    *fakeState
	deployed map[common.Address]*fakeContract
	nonces   map[common.Address]uint64
	self     common.Address
	from     common.Address
	frame    *types.CallFrame
}

// create deploys a contract from the called contract.
func (c *fakeCall) create(contract *fakeContract) common.Address {
	address := crypto.CreateAddress(c.self, c.nonces[c.self])
	c.nonces[c.self]++
	c.deployed[address] = contract
	c.frame.Children = append(c.frame.Children, &types.CallFrame{
		Kind: vm.CREATE, From: c.self, To: address, Output: contract.code, Depth: c.frame.Depth + 1, Parent: c.frame,
	})
	return address
}

type fakeHandler func(call *fakeCall, args []any) fakeOutcome

// fakeContract describes a contract of the fake environment, implemented by Go handlers keyed by method name.
type fakeContract struct {
	name              string
	abi               abi.ABI
	code              []byte
	constructorRevert string
	methods           map[string]fakeHandler
}

// newFakeContract creates a fake contract from a list of method signatures such as "increment()" or
// "invariantX() view returns (bool)".
func newFakeContract(t *testing.T, name string, methods map[string]fakeHandler, signatures ...string) *fakeContract {
	entries := make([]string, 0, len(signatures))
	for _, signature := range signatures {
		entries = append(entries, abiEntry(signature))
	}
	parsed, err := abi.JSON(strings.NewReader("[" + strings.Join(entries, ",") + "]"))
	require.NoError(t, err)
	return &fakeContract{name: name, abi: parsed, code: []byte("fake:" + name), methods: methods}
}

// abiEntry converts "name(type,...)[ view][ returns (bool)]" into a JSON ABI entry.
func abiEntry(signature string) string {
	mutability := "nonpayable"
	if strings.Contains(signature, " view") {
		mutability = "view"
	}
	outputs := "[]"
	if strings.Contains(signature, "returns (bool)") {
		outputs = `[{"name":"","type":"bool"}]`
	}
	head := strings.Fields(signature)[0]
	name := head[:strings.Index(head, "(")]
	inputTypes := strings.TrimSuffix(head[strings.Index(head, "(")+1:], ")")
	inputs := make([]string, 0)
	if inputTypes != "" {
		for i, inputType := range strings.Split(inputTypes, ",") {
			inputs = append(inputs, fmt.Sprintf(`{"name":"arg%d","type":"%s"}`, i, inputType))
		}
	}
	return fmt.Sprintf(`{"type":"function","name":"%s","inputs":[%s],"outputs":%s,"stateMutability":"%s"}`,
		name, strings.Join(inputs, ","), outputs, mutability)
}

// compiled returns the compiled form of the contract, as loaded from artifacts.
func (c *fakeContract) compiled() *compilationTypes.CompiledContract {
	return &compilationTypes.CompiledContract{
		Name:               c.name,
		SourcePath:         "test/" + c.name + ".sol",
		Abi:                c.abi,
		InitBytecodeHex:    hex.EncodeToString(c.code),
		RuntimeBytecodeHex: hex.EncodeToString(c.code),
	}
}

// fakeSnapshot is the Snapshot of a fakeExecutor.
type fakeSnapshot struct {
	state    *fakeState
	deployed map[common.Address]*fakeContract
	nonces   map[common.Address]uint64
}

// fakeExecutor is a deterministic in-memory Executor running fake contracts.
type fakeExecutor struct {
	registry  map[string]*fakeContract
	state     *fakeState
	deployed  map[common.Address]*fakeContract
	nonces    map[common.Address]uint64
	balances  map[common.Address]*uint256.Int
	tracing   bool
	generator types.CallGenerator
	create2   bool
	calls     *atomic.Int64
	clones    *atomic.Int64
}

func newFakeExecutor(contracts ...*fakeContract) *fakeExecutor {
	registry := make(map[string]*fakeContract, len(contracts))
	for _, contract := range contracts {
		registry[string(contract.code)] = contract
	}
	return &fakeExecutor{
		registry: registry,
		state:    newFakeState(),
		deployed: make(map[common.Address]*fakeContract),
		nonces:   make(map[common.Address]uint64),
		balances: make(map[common.Address]*uint256.Int),
		calls:    new(atomic.Int64),
		clones:   new(atomic.Int64),
	}
}

func (e *fakeExecutor) Deploy(from common.Address, code []byte, value *big.Int) (*types.DeployResult, error) {
	contract := e.lookup(code)
	if contract == nil {
		return nil, fmt.Errorf("unknown code %x", code)
	}
	address := crypto.CreateAddress(from, e.nonces[from])
	e.nonces[from]++

	var trace *types.CallFrame
	if e.tracing {
		trace = &types.CallFrame{Kind: vm.CREATE, From: from, To: address, Input: code, Output: contract.code}
	}
	if contract.constructorRevert != "" {
		if trace != nil {
			trace.Reverted = true
		}
		return nil, &types.ExecutionError{Reason: contract.constructorRevert, Trace: trace}
	}
	e.deployed[address] = contract
	return &types.DeployResult{Address: address, Gas: 100000, Trace: trace}, nil
}

// lookup returns the contract whose code is the longest prefix of code. Linked code carries library addresses after
// the registered code.
func (e *fakeExecutor) lookup(code []byte) *fakeContract {
	var match *fakeContract
	for registered, contract := range e.registry {
		if strings.HasPrefix(string(code), registered) && (match == nil || len(registered) > len(match.code)) {
			match = contract
		}
	}
	return match
}

func (e *fakeExecutor) Call(from common.Address, to common.Address, calldata []byte, value *big.Int, commit bool) (*types.CallResult, error) {
	e.calls.Add(1)
	call := &fakeCall{
		executor: e,
		state:    e.state.clone(),
		deployed: maps.Clone(e.deployed),
		nonces:   maps.Clone(e.nonces),
		self:     to,
		from:     from,
		frame:    &types.CallFrame{Kind: vm.CALL, From: from, To: to, Input: calldata},
	}
	outcome, err := e.dispatch(call, calldata)
	if err != nil {
		return nil, err
	}

	result := &types.CallResult{
		Reverted:   outcome.reverted,
		Rejected:   outcome.rejected,
		ReturnData: outcome.ret,
		Reason:     outcome.reason,
		Gas:        21000 + uint64(len(calldata))*16 + 100,
		Stipend:    21000 + uint64(len(calldata))*16,
		Labels:     outcome.labels,
	}
	if e.tracing {
		call.frame.Reverted = outcome.reverted
		result.Trace = call.frame
	}
	if !outcome.reverted {
		result.StateChangeset = call.state
	}

	if commit {
		if !outcome.reverted {
			e.state, e.deployed, e.nonces = call.state, call.deployed, call.nonces
		}
		if e.generator != nil {
			if override := e.generator.Next(from, to); override != nil {
				generator := e.generator
				e.generator = nil
				overrideResult, err := e.Call(override.From, override.To, override.Calldata, nil, true)
				e.generator = generator
				if err != nil {
					return nil, err
				}
				result.OverrideTrace = overrideResult.Trace
			}
		}
	}
	return result, nil
}

func (e *fakeExecutor) dispatch(call *fakeCall, calldata []byte) (fakeOutcome, error) {
	contract, found := call.deployed[call.self]
	if !found {
		return ok(), nil
	}
	if len(calldata) < types.SelectorLen {
		return revert("no selector"), nil
	}
	method, err := contract.abi.MethodById(calldata[:types.SelectorLen])
	if err != nil {
		return revert("unknown selector"), nil
	}
	args, err := method.Inputs.Unpack(calldata[types.SelectorLen:])
	if err != nil {
		return revert("bad calldata"), nil
	}
	handler, found := contract.methods[method.Name]
	if !found {
		return ok(), nil
	}
	if handler == nil {
		return fakeOutcome{}, fmt.Errorf("fault in %s", method.Sig)
	}
	return handler(call, args), nil
}

func (e *fakeExecutor) SetBalance(address common.Address, amount *uint256.Int) {
	e.balances[address] = new(uint256.Int).Set(amount)
}

func (e *fakeExecutor) SetNonce(address common.Address, nonce uint64) {
	e.nonces[address] = nonce
}

func (e *fakeExecutor) SetTracing(enabled bool) {
	e.tracing = enabled
}

func (e *fakeExecutor) Tracing() bool {
	return e.tracing
}

func (e *fakeExecutor) Snapshot() types.Snapshot {
	return &fakeSnapshot{state: e.state.clone(), deployed: maps.Clone(e.deployed), nonces: maps.Clone(e.nonces)}
}

func (e *fakeExecutor) Restore(snapshot types.Snapshot) {
	s := snapshot.(*fakeSnapshot)
	e.state, e.deployed, e.nonces = s.state.clone(), maps.Clone(s.deployed), maps.Clone(s.nonces)
}

func (e *fakeExecutor) IsSuccess(address common.Address, reverted bool, changeset types.StateChangeset, shouldFail bool) bool {
	success := !reverted
	if success {
		if state, ok := changeset.(*fakeState); ok && state.failed {
			success = false
		}
	}
	return success != shouldFail
}

func (e *fakeExecutor) DeployCreate2Deployer() error {
	e.create2 = true
	return nil
}

func (e *fakeExecutor) SetCallGenerator(generator types.CallGenerator) {
	e.generator = generator
}

func (e *fakeExecutor) Clone() (Executor, error) {
	e.clones.Add(1)
	return &fakeExecutor{
		registry: e.registry,
		state:    e.state.clone(),
		deployed: maps.Clone(e.deployed),
		nonces:   maps.Clone(e.nonces),
		balances: maps.Clone(e.balances),
		tracing:  e.tracing,
		create2:  e.create2,
		calls:    e.calls,
		clones:   e.clones,
	}, nil
}
