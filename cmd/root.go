package cmd

import (
	"os"

	"github.com/crytic/contest/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cmdLogger is the logger used by the cmd package. Test output goes through logging.GlobalLogger once the project
// config is read.
var cmdLogger = logging.NewLogger(zerolog.InfoLevel)

var rootCmd = &cobra.Command{
	Use:   "contest",
	Short: "A Solidity smart contract test runner",
	Long:  "contest runs the unit, fuzz and invariant tests of compiled Solidity test contracts",
}

func init() {
	cmdLogger.AddWriter(os.Stdout, logging.UNSTRUCTURED, true)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
