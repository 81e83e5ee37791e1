package cmd

import (
	"testing"

	"github.com/crytic/contest/fuzzing"
	"github.com/crytic/contest/fuzzing/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateProjectConfigWithTestFlags(t *testing.T) {
	parseFlags(t, testCmd,
		"--match-test", "^testDeposit",
		"--match-contract", "Vault",
		"--fuzz-runs", "7",
		"--invariant-runs", "3",
		"--invariant-depth", "9",
		"--fail-on-revert",
		"--call-override",
		"--no-fuzz",
		"--workers", "2",
		"--seed", "42",
		"--failure-dir", "failures",
		"--no-build",
		"--log-level", "debug",
		"--no-color",
	)

	projectConfig, err := config.GetDefaultProjectConfig()
	require.NoError(t, err)
	require.NoError(t, updateProjectConfigWithTestFlags(testCmd, projectConfig))

	assert.Equal(t, "^testDeposit", projectConfig.Testing.MatchTest)
	assert.Equal(t, "Vault", projectConfig.Testing.MatchContract)
	assert.Equal(t, 7, projectConfig.Fuzzing.FuzzRuns)
	assert.Equal(t, 3, projectConfig.Testing.InvariantRuns)
	assert.Equal(t, 9, projectConfig.Testing.InvariantDepth)
	assert.True(t, projectConfig.Testing.InvariantFailOnRevert)
	assert.True(t, projectConfig.Testing.InvariantCallOverride)
	assert.False(t, projectConfig.Testing.IncludeFuzzTests)
	assert.Equal(t, 2, projectConfig.Fuzzing.Workers)
	assert.EqualValues(t, 42, projectConfig.Fuzzing.Seed)
	assert.Equal(t, "failures", projectConfig.Fuzzing.FailureDirectory)
	assert.Empty(t, projectConfig.Compilation.BuildCommand)
	assert.Equal(t, zerolog.DebugLevel, projectConfig.Logging.Level)
	assert.True(t, projectConfig.Logging.NoColor)

	options, err := projectConfig.TestOptions()
	require.NoError(t, err)
	assert.Equal(t, fuzzing.RevertPolicyFail, options.InvariantRevertPolicy)
}

func TestUpdateProjectConfigWithTestFlags_Unchanged(t *testing.T) {
	parseFlags(t, testCmd)

	projectConfig, err := config.GetDefaultProjectConfig()
	require.NoError(t, err)
	expected, err := config.GetDefaultProjectConfig()
	require.NoError(t, err)

	require.NoError(t, updateProjectConfigWithTestFlags(testCmd, projectConfig))
	assert.Equal(t, expected, projectConfig)
}

func TestUpdateProjectConfigWithTestFlags_InvalidLogLevel(t *testing.T) {
	parseFlags(t, testCmd, "--log-level", "loud")

	projectConfig, err := config.GetDefaultProjectConfig()
	require.NoError(t, err)
	assert.Error(t, updateProjectConfigWithTestFlags(testCmd, projectConfig))
}
