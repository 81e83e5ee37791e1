package fuzzing

import (
	"math/rand"

	"github.com/crytic/contest/chain/types"
	"github.com/crytic/contest/fuzzing/contracts"
	"github.com/crytic/contest/fuzzing/valuegeneration"
	"github.com/crytic/medusa-geth/common"
)

// callOverrideProbability is the chance that an additional call is injected after a committing call.
const callOverrideProbability = 0.25

// RandomCallGenerator is a types.CallGenerator which injects randomly generated calls into invariant campaigns. It
// records every decision it makes, so a campaign can be replayed through a ReplayCallGenerator.
type RandomCallGenerator struct {
	// randomProvider drives every decision of the generator.
	randomProvider *rand.Rand

	// valueGenerator generates the arguments of injected calls.
	valueGenerator valuegeneration.ValueGenerator

	// senders describes the accounts injected calls are sent from.
	senders []common.Address

	// targets describes the methods injected calls may target.
	targets []*contracts.DeployedContractMethod

	// recorded describes the decision made on every call to Next, nil entries meaning no call was injected.
	recorded []*types.OverrideCall
}

// NewRandomCallGenerator creates a RandomCallGenerator. The random provider must be owned exclusively by the
// generator and its value generator.
func NewRandomCallGenerator(randomProvider *rand.Rand, valueGenerator valuegeneration.ValueGenerator, senders []common.Address, targets []*contracts.DeployedContractMethod) *RandomCallGenerator {
	return &RandomCallGenerator{
		randomProvider: randomProvider,
		valueGenerator: valueGenerator,
		senders:        senders,
		targets:        targets,
		recorded:       make([]*types.OverrideCall, 0),
	}
}

// Next implements types.CallGenerator.
func (g *RandomCallGenerator) Next(sender common.Address, target common.Address) *types.OverrideCall {
	var call *types.OverrideCall
	if len(g.senders) > 0 && len(g.targets) > 0 && g.randomProvider.Float64() < callOverrideProbability {
		method := g.targets[g.randomProvider.Intn(len(g.targets))]
		calldata, _, err := valuegeneration.GenerateCalldata(g.valueGenerator, &method.Method)
		if err == nil {
			call = &types.OverrideCall{
				From:     g.senders[g.randomProvider.Intn(len(g.senders))],
				To:       method.Address,
				Calldata: calldata,
			}
		}
	}
	g.recorded = append(g.recorded, call)
	return call
}

// Sequence returns a copy of the decisions recorded so far.
func (g *RandomCallGenerator) Sequence() []*types.OverrideCall {
	return append([]*types.OverrideCall(nil), g.recorded...)
}

// ReplayCallGenerator is a types.CallGenerator which returns the decisions recorded by a RandomCallGenerator in
// order, then stops injecting calls.
type ReplayCallGenerator struct {
	recorded []*types.OverrideCall
	index    int
}

// NewReplayCallGenerator creates a ReplayCallGenerator over a recorded sequence. The generator owns its own copy of
// the sequence.
func NewReplayCallGenerator(recorded []*types.OverrideCall) *ReplayCallGenerator {
	return &ReplayCallGenerator{recorded: append([]*types.OverrideCall(nil), recorded...)}
}

// Next implements types.CallGenerator.
func (g *ReplayCallGenerator) Next(sender common.Address, target common.Address) *types.OverrideCall {
	if g.index >= len(g.recorded) {
		return nil
	}
	call := g.recorded[g.index]
	g.index++
	return call
}
