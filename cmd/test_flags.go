package cmd

import (
	"fmt"

	"github.com/crytic/contest/fuzzing/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// addTestFlags adds the various flags for the test command
func addTestFlags() error {
	// Get the default project config and throw an error if we cant
	defaultConfig, err := config.GetDefaultProjectConfig()
	if err != nil {
		return err
	}

	// Config file
	testCmd.Flags().String("config", "", "path to config file")

	// Filtering
	testCmd.Flags().String("match-test", "", "only run test functions whose signature matches the regular expression")
	testCmd.Flags().String("match-contract", "", "only run test contracts whose name matches the regular expression")

	// Budgets
	testCmd.Flags().Int("fuzz-runs", 0,
		fmt.Sprintf("number of accepted cases each fuzz test executes (unless a config file is provided, default is %d)", defaultConfig.Fuzzing.FuzzRuns))
	testCmd.Flags().Int("invariant-runs", 0,
		fmt.Sprintf("number of call sequences each invariant campaign explores (unless a config file is provided, default is %d)", defaultConfig.Testing.InvariantRuns))
	testCmd.Flags().Int("invariant-depth", 0,
		fmt.Sprintf("number of calls in each explored sequence (unless a config file is provided, default is %d)", defaultConfig.Testing.InvariantDepth))

	// Invariant behavior
	testCmd.Flags().Bool("fail-on-revert", false, "break every invariant as soon as a campaign call reverts")
	testCmd.Flags().Bool("call-override", false, "inject calls into the test contract while campaign calls execute")
	testCmd.Flags().Bool("no-fuzz", false, "only run unit tests, skipping fuzz tests and invariants")

	// Execution
	testCmd.Flags().Int("workers", 0,
		fmt.Sprintf("number of suites and tests run in parallel (unless a config file is provided, default is %d)", defaultConfig.Fuzzing.Workers))
	testCmd.Flags().Int64("seed", 0, "seed for every random provider; runs with the same seed generate the same inputs")
	testCmd.Flags().String("failure-dir", "", "directory where counterexamples are persisted between runs")
	testCmd.Flags().Bool("no-build", false, "skip the build command and load existing artifacts")

	// Output
	testCmd.Flags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	testCmd.Flags().Bool("no-color", false, "disabled colored terminal output")
	testCmd.Flags().Bool("traces", false, "print the call traces of failing tests")

	return nil
}

// updateProjectConfigWithTestFlags will update the given projectConfig with any CLI arguments that were provided to
// the test command
func updateProjectConfigWithTestFlags(cmd *cobra.Command, projectConfig *config.ProjectConfig) error {
	var err error

	if cmd.Flags().Changed("match-test") {
		projectConfig.Testing.MatchTest, err = cmd.Flags().GetString("match-test")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("match-contract") {
		projectConfig.Testing.MatchContract, err = cmd.Flags().GetString("match-contract")
		if err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("fuzz-runs") {
		projectConfig.Fuzzing.FuzzRuns, err = cmd.Flags().GetInt("fuzz-runs")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("invariant-runs") {
		projectConfig.Testing.InvariantRuns, err = cmd.Flags().GetInt("invariant-runs")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("invariant-depth") {
		projectConfig.Testing.InvariantDepth, err = cmd.Flags().GetInt("invariant-depth")
		if err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("fail-on-revert") {
		projectConfig.Testing.InvariantFailOnRevert, err = cmd.Flags().GetBool("fail-on-revert")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("call-override") {
		projectConfig.Testing.InvariantCallOverride, err = cmd.Flags().GetBool("call-override")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("no-fuzz") {
		noFuzz, err := cmd.Flags().GetBool("no-fuzz")
		if err != nil {
			return err
		}
		projectConfig.Testing.IncludeFuzzTests = !noFuzz
	}

	if cmd.Flags().Changed("workers") {
		projectConfig.Fuzzing.Workers, err = cmd.Flags().GetInt("workers")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("seed") {
		projectConfig.Fuzzing.Seed, err = cmd.Flags().GetInt64("seed")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("failure-dir") {
		projectConfig.Fuzzing.FailureDirectory, err = cmd.Flags().GetString("failure-dir")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("no-build") {
		noBuild, err := cmd.Flags().GetBool("no-build")
		if err != nil {
			return err
		}
		if noBuild && projectConfig.Compilation != nil {
			projectConfig.Compilation.BuildCommand = nil
		}
	}

	if cmd.Flags().Changed("log-level") {
		levelName, err := cmd.Flags().GetString("log-level")
		if err != nil {
			return err
		}
		projectConfig.Logging.Level, err = zerolog.ParseLevel(levelName)
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("no-color") {
		projectConfig.Logging.NoColor, err = cmd.Flags().GetBool("no-color")
		if err != nil {
			return err
		}
	}
	return nil
}
