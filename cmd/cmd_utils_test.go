package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// parseFlags parses args into the flags of cmd, restoring every flag to its default once the test finishes.
func parseFlags(t *testing.T, cmd *cobra.Command, args ...string) {
	t.Cleanup(func() {
		cmd.Flags().VisitAll(func(flag *pflag.Flag) {
			if sliceValue, ok := flag.Value.(pflag.SliceValue); ok {
				_ = sliceValue.Replace(nil)
			} else {
				_ = flag.Value.Set(flag.DefValue)
			}
			flag.Changed = false
		})
	})
	require.NoError(t, cmd.ParseFlags(args))
}
