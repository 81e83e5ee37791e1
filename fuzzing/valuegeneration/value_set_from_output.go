package valuegeneration

import (
	"math/big"
	"reflect"

	"github.com/crytic/contest/compilation/abiutils"
	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	coretypes "github.com/crytic/medusa-geth/core/types"
)

// AddAbiValues adds decoded ABI values (e.g. call return values or event arguments) to the value set.
func (vs *ValueSet) AddAbiValues(types abi.Arguments, values []any) {
	if len(types) != len(values) {
		return
	}
	for i, argument := range types {
		vs.addAbiValue(&argument.Type, values[i])
	}
}

// addAbiValue adds a single decoded value of the given type, recursing into arrays.
func (vs *ValueSet) addAbiValue(t *abi.Type, value any) {
	switch t.T {
	case abi.AddressTy:
		if address, ok := value.(common.Address); ok {
			vs.AddAddress(address)
		}
	case abi.UintTy, abi.IntTy:
		switch v := value.(type) {
		case *big.Int:
			vs.AddInteger(v)
		case uint8, uint16, uint32, uint64:
			vs.AddInteger(new(big.Int).SetUint64(toUint64(v)))
		case int8, int16, int32, int64:
			vs.AddInteger(big.NewInt(toInt64(v)))
		}
	case abi.StringTy:
		if s, ok := value.(string); ok {
			vs.AddString(s)
		}
	case abi.BytesTy:
		if b, ok := value.([]byte); ok {
			vs.AddBytes(b)
		}
	case abi.SliceTy, abi.ArrayTy:
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return
		}
		for i := 0; i < rv.Len(); i++ {
			vs.addAbiValue(t.Elem, rv.Index(i).Interface())
		}
	}
}

// AddFromLogs decodes event logs emitted by known contracts and adds their arguments to the value set. Logs whose
// event is unknown only contribute their emitter address and topics.
func (vs *ValueSet) AddFromLogs(logs []*coretypes.Log, abis ...*abi.ABI) {
	for _, log := range logs {
		vs.AddAddress(log.Address)
		if len(log.Topics) == 0 {
			continue
		}
		for _, topic := range log.Topics[1:] {
			vs.AddInteger(topic.Big())
		}

		for _, contractAbi := range abis {
			if event, values := abiutils.UnpackEventAndValues(contractAbi, log); event != nil {
				vs.AddAbiValues(event.Inputs, values)
				break
			}
		}
	}
}

func toUint64(v any) uint64 {
	switch n := v.(type) {
	case uint8:
		return uint64(n)
	case uint16:
		return uint64(n)
	case uint32:
		return uint64(n)
	case uint64:
		return n
	}
	return 0
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	}
	return 0
}
