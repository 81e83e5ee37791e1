package utils

import (
	"fmt"

	"github.com/crytic/medusa-geth/common"
)

// HexStringToAddress converts a hex string (with or without the "0x" prefix) to a common.Address. Returns an error
// if the string is not a valid 20-byte hex address.
func HexStringToAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// HexStringsToAddresses converts a list of hex strings to addresses, failing on the first invalid entry.
func HexStringsToAddresses(addresses []string) ([]common.Address, error) {
	result := make([]common.Address, 0, len(addresses))
	for _, s := range addresses {
		address, err := HexStringToAddress(s)
		if err != nil {
			return nil, err
		}
		result = append(result, address)
	}
	return result, nil
}
