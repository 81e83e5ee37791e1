package chain

import (
	"encoding/binary"
	"math/big"

	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core"
	"github.com/crytic/medusa-geth/core/vm"
	"github.com/crytic/medusa-geth/crypto"
)

// newTestChainBlockContext obtains a new vm.BlockContext describing the single, fixed block every message of a
// TestChain executes in.
func newTestChainBlockContext(testChain *TestChain) vm.BlockContext {
	random := crypto.Keccak256Hash([]byte("prevrandao"))
	return vm.BlockContext{
		CanTransfer: core.CanTransfer,
		Transfer:    core.Transfer,
		GetHash: func(n uint64) common.Hash {
			// Block hashes are derived from the block number so BLOCKHASH is deterministic across runs.
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], n)
			return crypto.Keccak256Hash(b[:])
		},
		Coinbase:    testChain.config.Coinbase,
		BlockNumber: new(big.Int).SetUint64(testChain.config.BlockNumber),
		Time:        testChain.config.BlockTimestamp,
		Difficulty:  big.NewInt(0),
		BaseFee:     big.NewInt(0),
		BlobBaseFee: big.NewInt(1),
		GasLimit:    testChain.config.GasLimit,
		Random:      &random,
	}
}
