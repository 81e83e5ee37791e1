package types

import "github.com/crytic/medusa-geth/common"

const (
	// DevChainID is the chain ID reported by the environment.
	DevChainID = 31337

	// SelectorLen is the length in bytes of a function selector at the head of calldata.
	SelectorLen = 4
)

var (
	// CheatCodeAddress is the address the cheat code pre-compile is installed at.
	CheatCodeAddress = common.HexToAddress("0x7109709ECfa91a80626fF3989D68f67F5b1DD12D")

	// Caller is the fixed caller account which is funded during test setup.
	Caller = common.HexToAddress("0x1804c8AB1F12E6bbf3894d4083f33e07309d1f38")

	// DefaultSender is the default account used to deploy and call test contracts.
	DefaultSender = common.HexToAddress("0x00a329c0648769A73afAc7F9381E08FB43dBEA72")

	// DefaultCreate2Deployer is the address of the deterministic deployment proxy used for salted deployments.
	DefaultCreate2Deployer = common.HexToAddress("0x4e59b44847b379578588920ca78fbf26c0b4956c")

	// AssumeMagic is the revert payload produced when an assumption made through the cheat code pre-compile does
	// not hold. Calls ending with this payload are rejected rather than failed.
	AssumeMagic = []byte("FOUNDRY::ASSUME")
)
