package types

import (
	"github.com/crytic/medusa-geth/common"
	"golang.org/x/exp/maps"
)

// Coverage describes the program counters executed per contract address, with their hit counts.
type Coverage struct {
	// Hits maps contract addresses to a map of program counter to hit count.
	Hits map[common.Address]map[uint64]uint64
}

// NewCoverage returns an empty Coverage.
func NewCoverage() *Coverage {
	return &Coverage{Hits: make(map[common.Address]map[uint64]uint64)}
}

// Hit records a single execution of the instruction at the given program counter.
func (c *Coverage) Hit(address common.Address, pc uint64) {
	pcs, ok := c.Hits[address]
	if !ok {
		pcs = make(map[uint64]uint64)
		c.Hits[address] = pcs
	}
	pcs[pc]++
}

// Merge adds every hit in other to this coverage. A nil other is ignored.
func (c *Coverage) Merge(other *Coverage) {
	if other == nil {
		return
	}
	for address, pcs := range other.Hits {
		if _, ok := c.Hits[address]; !ok {
			c.Hits[address] = maps.Clone(pcs)
			continue
		}
		for pc, count := range pcs {
			c.Hits[address][pc] += count
		}
	}
}

// InstructionCount returns the number of distinct instructions covered across all addresses.
func (c *Coverage) InstructionCount() int {
	count := 0
	for _, pcs := range c.Hits {
		count += len(pcs)
	}
	return count
}
