package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/crytic/contest/cmd/exitcodes"
	"github.com/crytic/contest/fuzzing"
	"github.com/crytic/contest/fuzzing/corpus"
	"github.com/crytic/contest/logging"
	"github.com/spf13/cobra"
)

// testCmd represents the command provider for running tests
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Runs the tests of a project",
	Long: `Builds the project and runs the unit tests, fuzz tests and invariants of every test contract.

Test contracts are contracts declaring functions prefixed with "test" or "invariant".`,
	Args:              cmdValidateTestArgs,
	ValidArgsFunction: cmdValidTestArgs,
	RunE:              cmdRunTest,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	// Add all the flags allowed for the test command
	err := addTestFlags()
	if err != nil {
		cmdLogger.Panic("Failed to initialize the test command", err)
	}

	// Add the test command and its associated flags to the root command
	rootCmd.AddCommand(testCmd)
}

// cmdValidTestArgs will return which flags and sub-commands are valid for dynamic completion for the test command
func cmdValidTestArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return unusedFlags(cmd), cobra.ShellCompDirectiveNoFileComp
}

// cmdValidateTestArgs makes sure that there are no positional arguments provided to the test command
func cmdValidateTestArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		err = fmt.Errorf("test does not accept any positional arguments, only flags and their associated values")
		cmdLogger.Error("Failed to validate args to the test command", err)
		return err
	}
	return nil
}

// cmdRunTest executes the CLI test command: it resolves the project configuration, builds the project, runs every
// matched suite and reports the results.
func cmdRunTest(cmd *cobra.Command, args []string) error {
	projectConfig, err := resolveProjectConfig(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the test command", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	// Update the project configuration given whatever flags were set using the CLI
	if err = updateProjectConfigWithTestFlags(cmd, projectConfig); err != nil {
		cmdLogger.Error("Failed to run the test command", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}
	if err = projectConfig.Validate(); err != nil {
		cmdLogger.Error("Invalid project configuration", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}
	showTraces, err := cmd.Flags().GetBool("traces")
	if err != nil {
		return err
	}

	closeLog, err := setupGlobalLogger(projectConfig.Logging)
	if err != nil {
		cmdLogger.Error("Failed to set up logging", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}
	defer closeLog()

	projectContracts, err := compileProject(projectConfig)
	if err != nil {
		cmdLogger.Error("Failed to compile the project", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	runner, err := newMultiContractRunner(projectConfig, projectContracts)
	if err != nil {
		cmdLogger.Error("Failed to run the test command", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	if projectConfig.Fuzzing.FailureDirectory != "" {
		store, err := corpus.OpenFailureStore(projectConfig.Fuzzing.FailureDirectory)
		if err != nil {
			cmdLogger.Error("Failed to open the failure store", err)
			return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
		}
		defer store.Close()
		runner.WithFailureStore(store)
	}

	out := cmd.OutOrStdout()
	abis := projectABIs(projectContracts)
	progressLogger := logging.GlobalLogger.NewSubLogger("module", logging.CLI_SERVICE)
	runner.Events.TestFinished.Subscribe(func(event fuzzing.TestFinishedEvent) error {
		progressLogger.Debug("Finished ", event.ContractName, ".", event.Signature, logging.StructuredLogInfo{
			"success": event.Result.Success,
			"reason":  event.Result.Reason(),
			"kind":    event.Result.Kind.String(),
		})
		return nil
	})
	runner.Events.SuiteFinished.Subscribe(func(event fuzzing.SuiteFinishedEvent) error {
		writeSuiteReport(out, event.Result, showTraces, abis)
		return nil
	})

	filter, err := projectConfig.Filter()
	if err != nil {
		return err
	}

	// Stop running tests on keyboard interrupts
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	results, err := runner.Run(ctx, filter)
	if err != nil {
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeRunnerError)
	}
	if len(results) == 0 {
		cmdLogger.Warn("No tests match the provided filters")
		return nil
	}

	failed := writeRunSummary(out, results, time.Since(start))
	if failed > 0 {
		return exitcodes.NewErrorWithExitCode(fmt.Errorf("%d tests failed", failed), exitcodes.ExitCodeTestFailed)
	}
	return nil
}
