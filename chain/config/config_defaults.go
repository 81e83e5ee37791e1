package config

// DefaultTestChainConfig obtains a default configuration for a chain.TestChain.
// Returns a TestChainConfig populated with default values.
func DefaultTestChainConfig() (*TestChainConfig, error) {
	config := &TestChainConfig{
		GasLimit:              1 << 30,
		BlockNumber:           1,
		BlockTimestamp:        1,
		CodeSizeCheckDisabled: true,
		CheatCodeConfig: CheatCodeConfig{
			CheatCodesEnabled: true,
		},
		CoverageEnabled: false,
	}
	return config, nil
}
