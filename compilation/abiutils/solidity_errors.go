package abiutils

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common/hexutil"
)

// Panic codes returned by Solidity in `Panic(uint256)` revert data.
// Reference: https://docs.soliditylang.org/en/latest/control-structures.html#panic-via-assert-and-error-via-require
const (
	PanicCodeCompilerInserted              = 0x00
	PanicCodeAssertFailed                  = 0x01
	PanicCodeArithmeticUnderOverflow       = 0x11
	PanicCodeDivideByZero                  = 0x12
	PanicCodeEnumTypeConversionOutOfBounds = 0x21
	PanicCodeIncorrectStorageAccess        = 0x22
	PanicCodePopEmptyArray                 = 0x31
	PanicCodeOutOfBoundsArrayAccess        = 0x32
	PanicCodeAllocateTooMuchMemory         = 0x41
	PanicCodeCallUninitializedVariable     = 0x51
)

var (
	errorStringMethod = newSingleArgumentMethod("Error", "string")
	panicCodeMethod   = newSingleArgumentMethod("Panic", "uint256")
)

// newSingleArgumentMethod creates a method definition with a single unnamed input, used to match built-in revert
// payloads by selector.
func newSingleArgumentMethod(name string, argType string) abi.Method {
	typ, err := abi.NewType(argType, "", nil)
	if err != nil {
		panic(err)
	}
	return abi.NewMethod(name, name, abi.Function, "", false, false, abi.Arguments{{Type: typ}}, abi.Arguments{})
}

// GetSolidityRevertErrorString obtains the message of an `Error(string)` revert payload.
// If the return data is not representative of an Error, then nil is returned.
func GetSolidityRevertErrorString(returnData []byte) *string {
	if len(returnData) <= 4 || !bytes.Equal(returnData[:4], errorStringMethod.ID) {
		return nil
	}
	values, err := errorStringMethod.Inputs.Unpack(returnData[4:])
	if err != nil || len(values) == 0 {
		return nil
	}
	message, ok := values[0].(string)
	if !ok {
		return nil
	}
	return &message
}

// GetSolidityPanicCode obtains the code of a `Panic(uint256)` revert payload.
// If the return data is not representative of a Panic, then nil is returned.
func GetSolidityPanicCode(returnData []byte) *big.Int {
	if len(returnData) != 4+32 || !bytes.Equal(returnData[:4], panicCodeMethod.ID) {
		return nil
	}
	values, err := panicCodeMethod.Inputs.Unpack(returnData[4:])
	if err != nil || len(values) == 0 {
		return nil
	}
	code, ok := values[0].(*big.Int)
	if !ok {
		return nil
	}
	return code
}

// GetSolidityCustomRevertError obtains a custom Solidity error returned, if one was and could be resolved.
// Returns the ABI error definition as well as its unpacked values. Or returns nil outputs if a custom error was not
// emitted, or could not be resolved.
func GetSolidityCustomRevertError(contractAbi *abi.ABI, returnData []byte) (*abi.Error, []any) {
	if contractAbi == nil || len(returnData) < 4 {
		return nil, nil
	}
	for _, abiError := range contractAbi.Errors {
		if !bytes.Equal(abiError.ID.Bytes()[:4], returnData[:4]) {
			continue
		}
		matched := abiError
		values, err := matched.Inputs.Unpack(returnData[4:])
		if err == nil {
			return &matched, values
		}
	}
	return nil, nil
}

// GetPanicReason will take in a panic code as an uint64 and will return the string reason behind that panic code. For
// example, if panic code is PanicCodeAssertFailed, then "assertion failure" is returned.
func GetPanicReason(panicCode uint64) string {
	switch panicCode {
	case PanicCodeCompilerInserted:
		return "panic: compiler inserted panic"
	case PanicCodeAssertFailed:
		return "panic: assertion failed"
	case PanicCodeArithmeticUnderOverflow:
		return "panic: arithmetic underflow or overflow"
	case PanicCodeDivideByZero:
		return "panic: division or modulo by zero"
	case PanicCodeEnumTypeConversionOutOfBounds:
		return "panic: enum access out of bounds"
	case PanicCodeIncorrectStorageAccess:
		return "panic: incorrect storage access"
	case PanicCodePopEmptyArray:
		return "panic: pop on empty array"
	case PanicCodeOutOfBoundsArrayAccess:
		return "panic: out of bounds array access"
	case PanicCodeAllocateTooMuchMemory:
		return "panic: overallocation of memory"
	case PanicCodeCallUninitializedVariable:
		return "panic: call on uninitialized variable"
	default:
		return fmt.Sprintf("panic: unknown panic code (%#x)", panicCode)
	}
}

// DecodeRevertReason renders revert data as a human-readable reason. Built-in Error and Panic payloads are tried
// first, then custom errors from each of the provided ABIs, then a raw UTF-8 string. Anything else is hex encoded.
// Empty revert data yields an empty reason.
func DecodeRevertReason(returnData []byte, contractAbis ...*abi.ABI) string {
	if len(returnData) == 0 {
		return ""
	}
	if message := GetSolidityRevertErrorString(returnData); message != nil {
		return *message
	}
	if code := GetSolidityPanicCode(returnData); code != nil {
		return GetPanicReason(code.Uint64())
	}
	for _, contractAbi := range contractAbis {
		if customError, values := GetSolidityCustomRevertError(contractAbi, returnData); customError != nil {
			args := make([]string, 0, len(values))
			for _, value := range values {
				args = append(args, fmt.Sprintf("%v", value))
			}
			return fmt.Sprintf("%s(%s)", customError.Name, strings.Join(args, ", "))
		}
	}
	if utf8.Valid(returnData) && isPrintable(string(returnData)) {
		return string(returnData)
	}
	return "custom error " + hexutil.Encode(returnData)
}

// isPrintable reports whether every rune in s is a printable, non-control character.
func isPrintable(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
