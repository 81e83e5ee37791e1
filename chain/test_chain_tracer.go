package chain

import (
	"math/big"

	"github.com/crytic/contest/chain/types"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core/tracing"
	"github.com/crytic/medusa-geth/core/vm"
)

// callTracer records the call tree of a single transaction as types.CallFrame objects and, optionally, the
// instructions it executed.
type callTracer struct {
	// root describes the top-level frame of the transaction, set on the first OnEnter.
	root *types.CallFrame

	// current describes the frame currently executing.
	current *types.CallFrame

	// coverage records executed program counters when non-nil.
	coverage *types.Coverage
}

// newCallTracer creates a callTracer. If collectCoverage is set, every executed instruction is recorded.
func newCallTracer(collectCoverage bool) *callTracer {
	t := &callTracer{}
	if collectCoverage {
		t.coverage = types.NewCoverage()
	}
	return t
}

// hooks returns the tracing hooks which feed this tracer.
func (t *callTracer) hooks() *tracing.Hooks {
	hooks := &tracing.Hooks{
		OnEnter: t.OnEnter,
		OnExit:  t.OnExit,
	}
	if t.coverage != nil {
		hooks.OnOpcode = t.OnOpcode
	}
	return hooks
}

// OnEnter pushes a new call frame, as defined by tracing.Hooks.
func (t *callTracer) OnEnter(depth int, typ byte, from common.Address, to common.Address, input []byte, gas uint64, value *big.Int) {
	frame := &types.CallFrame{
		Kind:   vm.OpCode(typ),
		From:   from,
		To:     to,
		Input:  common.CopyBytes(input),
		Value:  new(big.Int),
		Gas:    gas,
		Depth:  depth,
		Parent: t.current,
	}
	if value != nil {
		frame.Value.Set(value)
	}

	if t.current == nil {
		t.root = frame
	} else {
		t.current.Children = append(t.current.Children, frame)
	}
	t.current = frame
}

// OnExit pops the current call frame, as defined by tracing.Hooks.
func (t *callTracer) OnExit(depth int, output []byte, gasUsed uint64, err error, reverted bool) {
	if t.current == nil {
		return
	}
	t.current.Output = common.CopyBytes(output)
	t.current.GasUsed = gasUsed
	t.current.Reverted = reverted
	if err != nil {
		t.current.Err = err.Error()
	}
	t.current = t.current.Parent
}

// OnOpcode records the executed instruction for coverage, as defined by tracing.Hooks.
func (t *callTracer) OnOpcode(pc uint64, op byte, gas, cost uint64, scope tracing.OpContext, rData []byte, depth int, err error) {
	t.coverage.Hit(scope.Address(), pc)
}
