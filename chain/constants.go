package chain

import (
	"github.com/crytic/contest/chain/types"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/crypto"
)

var (
	// create2DeployerRuntimeCode is the runtime bytecode of the deterministic deployment proxy. It takes a 32 byte
	// salt followed by init code as calldata and returns the address of the created contract.
	create2DeployerRuntimeCode = common.FromHex("0x7fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffe03601600081602082378035828234f58015156039578182fd5b8082525050506014600cf3")

	// globalFailureSlot is the storage slot of the cheat code address which assertion libraries set to record a
	// failure without reverting.
	globalFailureSlot = common.BytesToHash(common.RightPadBytes([]byte("failed"), 32))

	// failedSelector is the selector of the `failed()` view exposed by assertion libraries.
	failedSelector = crypto.Keccak256([]byte("failed()"))[:types.SelectorLen]
)
