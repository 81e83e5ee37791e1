package cmd

import (
	"fmt"

	fuzzingutils "github.com/crytic/contest/fuzzing/utils"
	"github.com/spf13/cobra"
)

// listCmd represents the command provider for listing tests without running them
var listCmd = &cobra.Command{
	Use:               "list",
	Short:             "Lists the tests of a project",
	Long:              `Builds the project and lists the tests and invariants of every test contract matching the filters`,
	Args:              cobra.NoArgs,
	ValidArgsFunction: cmdValidListArgs,
	RunE:              cmdRunList,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	listCmd.Flags().String("config", "", "path to config file")
	listCmd.Flags().String("match-test", "", "only list test functions whose signature matches the regular expression")
	listCmd.Flags().String("match-contract", "", "only list test contracts whose name matches the regular expression")
	listCmd.Flags().Bool("no-build", false, "skip the build command and load existing artifacts")
	rootCmd.AddCommand(listCmd)
}

// cmdValidListArgs will return which flags are valid for dynamic completion for the list command
func cmdValidListArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return unusedFlags(cmd), cobra.ShellCompDirectiveNoFileComp
}

// cmdRunList executes the CLI list command
func cmdRunList(cmd *cobra.Command, args []string) error {
	projectConfig, err := resolveProjectConfig(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the list command", err)
		return err
	}
	if err = updateProjectConfigWithTestFlags(cmd, projectConfig); err != nil {
		cmdLogger.Error("Failed to run the list command", err)
		return err
	}
	filter, err := projectConfig.Filter()
	if err != nil {
		cmdLogger.Error("Failed to run the list command", err)
		return err
	}

	projectContracts, err := compileProject(projectConfig)
	if err != nil {
		cmdLogger.Error("Failed to compile the project", err)
		return err
	}
	runner, err := newMultiContractRunner(projectConfig, projectContracts)
	if err != nil {
		cmdLogger.Error("Failed to run the list command", err)
		return err
	}

	out := cmd.OutOrStdout()
	for _, contract := range runner.TestContracts(filter) {
		methods := fuzzingutils.ClassifyTestMethods(&contract.Abi, filter.MatchesTest, projectConfig.Testing.IncludeFuzzTests)
		fmt.Fprintln(out, contract.FullyQualifiedName())
		for _, test := range methods.Tests {
			fmt.Fprintf(out, "  %s [%s]\n", test.Signature(), test.Kind)
		}
		for _, invariant := range methods.Invariants {
			fmt.Fprintf(out, "  %s [%s]\n", invariant.Signature(), invariant.Kind)
		}
	}
	return nil
}
