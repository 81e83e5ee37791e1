package valuegeneration

import (
	"math/big"
	"strings"
	"testing"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	coretypes "github.com/crytic/medusa-geth/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValueSetDedupAndOrdering verifies values are deduplicated and listed in a stable order.
func TestValueSetDedupAndOrdering(t *testing.T) {
	vs := NewValueSet()
	vs.AddInteger(big.NewInt(3))
	vs.AddInteger(big.NewInt(-1))
	vs.AddInteger(big.NewInt(3))
	vs.AddString("b")
	vs.AddString("a")
	vs.AddBytes([]byte{1})
	vs.AddBytes([]byte{1})
	vs.AddAddress(common.HexToAddress("0x02"))
	vs.AddAddress(common.HexToAddress("0x01"))

	assert.Equal(t, []*big.Int{big.NewInt(-1), big.NewInt(3)}, vs.Integers())
	assert.Equal(t, []string{"a", "b"}, vs.Strings())
	assert.Len(t, vs.Bytes(), 1)
	assert.Equal(t, []common.Address{common.HexToAddress("0x01"), common.HexToAddress("0x02")}, vs.Addresses())
	assert.Equal(t, 7, vs.Len())

	clone := vs.Clone()
	clone.RemoveString("a")
	clone.RemoveBytes([]byte{1})
	clone.RemoveInteger(big.NewInt(3))
	clone.RemoveAddress(common.HexToAddress("0x01"))
	assert.Equal(t, 7, vs.Len())
	assert.Equal(t, 3, clone.Len())
}

// TestValueSetFromLogs verifies event arguments are harvested into the value set.
func TestValueSetFromLogs(t *testing.T) {
	const eventAbi = `[{"type":"event","name":"Stored","anonymous":false,"inputs":[` +
		`{"name":"who","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},` +
		`{"name":"note","type":"string","indexed":false}]}]`
	parsed, err := abi.JSON(strings.NewReader(eventAbi))
	require.NoError(t, err)
	event := parsed.Events["Stored"]

	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(99), "memo")
	require.NoError(t, err)

	emitter := common.HexToAddress("0xabc")
	who := common.HexToAddress("0xdef")
	log := &coretypes.Log{
		Address: emitter,
		Topics:  []common.Hash{event.ID, common.BytesToHash(who.Bytes())},
		Data:    data,
	}

	vs := NewValueSet()
	vs.AddFromLogs([]*coretypes.Log{log}, &parsed)

	assert.Contains(t, vs.Addresses(), emitter)
	assert.Contains(t, vs.Addresses(), who)
	assert.Contains(t, vs.Strings(), "memo")
	assert.Contains(t, vs.Integers(), big.NewInt(99))
	assert.Contains(t, vs.Integers(), new(big.Int).SetBytes(who.Bytes()))
}
