package cmd

import (
	"github.com/crytic/contest/fuzzing/config"
	"github.com/spf13/cobra"
)

// addInitFlags adds the various flags for the init command
func addInitFlags() error {
	// Output path for configuration
	initCmd.Flags().String("out", "", "output path for the new project configuration file")

	// Overwrite without prompting
	initCmd.Flags().Bool("force", false, "overwrite an existing configuration file without prompting")

	// Artifacts and build command
	initCmd.Flags().String("artifacts", "", "directory holding the build artifacts")
	initCmd.Flags().StringSlice("build-command", nil, "command producing the build artifacts, e.g. forge,build")

	return nil
}

// updateProjectConfigWithInitFlags will update the given projectConfig with any CLI arguments that were provided to the init command
func updateProjectConfigWithInitFlags(cmd *cobra.Command, projectConfig *config.ProjectConfig) error {
	if cmd.Flags().Changed("artifacts") {
		artifacts, err := cmd.Flags().GetString("artifacts")
		if err != nil {
			return err
		}
		projectConfig.Compilation.ArtifactsDirectory = artifacts
	}
	if cmd.Flags().Changed("build-command") {
		buildCommand, err := cmd.Flags().GetStringSlice("build-command")
		if err != nil {
			return err
		}
		projectConfig.Compilation.BuildCommand = buildCommand
	}
	return nil
}
