package valuegeneration

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/common/hexutil"
)

// GenerateAbiValue generates a value of the provided abi.Type using the provided ValueGenerator. The returned value
// has the Go type go-ethereum's ABI encoder expects for the type.
func GenerateAbiValue(generator ValueGenerator, inputType *abi.Type) any {
	switch inputType.T {
	case abi.AddressTy:
		return generator.GenerateAddress()
	case abi.UintTy, abi.IntTy:
		return convertInteger(generator.GenerateInteger(inputType.T == abi.IntTy, inputType.Size), inputType)
	case abi.BoolTy:
		return generator.GenerateBool()
	case abi.StringTy:
		return generator.GenerateString()
	case abi.BytesTy:
		return generator.GenerateBytes()
	case abi.FixedBytesTy:
		// Fixed byte arrays can only be constructed with the right length through reflection.
		array := reflect.Indirect(reflect.New(inputType.GetType()))
		b := generator.GenerateFixedBytes(inputType.Size)
		for i := 0; i < array.Len(); i++ {
			array.Index(i).Set(reflect.ValueOf(b[i]))
		}
		return array.Interface()
	case abi.ArrayTy:
		array := reflect.Indirect(reflect.New(inputType.GetType()))
		for i := 0; i < array.Len(); i++ {
			array.Index(i).Set(reflect.ValueOf(GenerateAbiValue(generator, inputType.Elem)))
		}
		return array.Interface()
	case abi.SliceTy:
		length := generator.GenerateArrayOfLength()
		slice := reflect.MakeSlice(inputType.GetType(), length, length)
		for i := 0; i < length; i++ {
			slice.Index(i).Set(reflect.ValueOf(GenerateAbiValue(generator, inputType.Elem)))
		}
		return slice.Interface()
	case abi.TupleTy:
		// go-ethereum's encoder expects an anonymous struct matching the tuple definition.
		st := reflect.Indirect(reflect.New(inputType.GetType()))
		for i := 0; i < len(inputType.TupleElems); i++ {
			st.Field(i).Set(reflect.ValueOf(GenerateAbiValue(generator, inputType.TupleElems[i])))
		}
		return st.Interface()
	}

	// Mappings cannot be function arguments and fixed point types are not supported by Solidity yet.
	panic(fmt.Sprintf("attempt to generate function argument of unsupported type: '%s'", inputType.String()))
}

// convertInteger converts a generated big integer to the native Go type the ABI encoder expects for integers of
// 8 to 64 bits.
func convertInteger(b *big.Int, inputType *abi.Type) any {
	signed := inputType.T == abi.IntTy
	switch inputType.Size {
	case 8:
		if signed {
			return int8(b.Int64())
		}
		return uint8(b.Uint64())
	case 16:
		if signed {
			return int16(b.Int64())
		}
		return uint16(b.Uint64())
	case 32:
		if signed {
			return int32(b.Int64())
		}
		return uint32(b.Uint64())
	case 64:
		if signed {
			return b.Int64()
		}
		return b.Uint64()
	}
	return b
}

// GenerateCalldata generates random arguments for the method and returns the encoded calldata along with the
// generated arguments.
func GenerateCalldata(generator ValueGenerator, method *abi.Method) ([]byte, []any, error) {
	args := make([]any, len(method.Inputs))
	for i := 0; i < len(method.Inputs); i++ {
		args[i] = GenerateAbiValue(generator, &method.Inputs[i].Type)
	}

	packed, err := method.Inputs.Pack(args...)
	if err != nil {
		return nil, nil, fmt.Errorf("could not encode arguments for %s: %w", method.Sig, err)
	}
	return append(common.CopyBytes(method.ID), packed...), args, nil
}

// DecodeCalldata decodes the arguments of calldata for the provided method. The selector is expected to be
// present.
func DecodeCalldata(method *abi.Method, calldata []byte) ([]any, error) {
	if len(calldata) < len(method.ID) {
		return nil, fmt.Errorf("calldata too short for %s", method.Sig)
	}
	return method.Inputs.Unpack(calldata[len(method.ID):])
}

// EncodeValueToString renders a decoded ABI value in Solidity-like syntax for display in counterexamples.
func EncodeValueToString(value any) string {
	switch v := value.(type) {
	case common.Address:
		return v.Hex()
	case *big.Int:
		return v.String()
	case string:
		return fmt.Sprintf("%q", v)
	case []byte:
		return hexutil.Encode(v)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Array:
		// Fixed bytes are arrays of bytes and read better as hex.
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return hexutil.Encode(b)
		}
		fallthrough
	case reflect.Slice:
		elements := make([]string, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elements[i] = EncodeValueToString(rv.Index(i).Interface())
		}
		return "[" + strings.Join(elements, ", ") + "]"
	case reflect.Struct:
		fields := make([]string, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			fields[i] = EncodeValueToString(rv.Field(i).Interface())
		}
		return "(" + strings.Join(fields, ", ") + ")"
	}
	return fmt.Sprintf("%v", value)
}
