package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/crytic/contest/fuzzing/config"
	"github.com/crytic/contest/logging"
	"github.com/crytic/contest/logging/colors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"
)

// resolveProjectConfig finds and reads the project configuration for a command:
// #1: If --config was used, the file must exist and is read.
// #2: Otherwise, contest.json in the working directory is read if it exists.
// #3: Otherwise, the default project configuration is used.
// The working directory is changed to the directory of the configuration file, so relative paths in it resolve
// against the project.
func resolveProjectConfig(cmd *cobra.Command) (*config.ProjectConfig, error) {
	configFlagUsed := cmd.Flags().Changed("config")
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	if !configFlagUsed {
		workingDirectory, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(workingDirectory, DefaultProjectConfigFilename)
	}

	var projectConfig *config.ProjectConfig
	_, existenceError := os.Stat(configPath)
	switch {
	case existenceError == nil:
		cmdLogger.Info("Reading the configuration file at: ", colors.Bold, configPath, colors.Reset)
		projectConfig, err = config.ReadProjectConfigFromFile(configPath)
		if err != nil {
			return nil, err
		}
	case configFlagUsed:
		return nil, existenceError
	default:
		cmdLogger.Warn(fmt.Sprintf("Unable to find the config file at %v, will use the default project configuration instead", configPath))
		projectConfig, err = config.GetDefaultProjectConfig()
		if err != nil {
			return nil, err
		}
	}

	if err = os.Chdir(filepath.Dir(configPath)); err != nil {
		return nil, err
	}
	return projectConfig, nil
}

// setupGlobalLogger configures logging.GlobalLogger from the logging config: console output always, and a rotating
// structured log file if a log directory is set. The returned function closes the log file.
func setupGlobalLogger(loggingConfig config.LoggingConfig) (func() error, error) {
	if loggingConfig.NoColor {
		colors.DisableColor()
	}

	logging.GlobalLogger = logging.NewLogger(loggingConfig.Level)
	logging.GlobalLogger.AddWriter(os.Stdout, logging.UNSTRUCTURED, !loggingConfig.NoColor)
	if loggingConfig.LogDirectory == "" {
		return func() error { return nil }, nil
	}

	if err := os.MkdirAll(loggingConfig.LogDirectory, 0755); err != nil {
		return nil, err
	}
	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(loggingConfig.LogDirectory, DefaultLogFilename),
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	}
	logging.GlobalLogger.AddWriter(logFile, logging.STRUCTURED, false)
	return logFile.Close, nil
}

// unusedFlags returns the "--" prefixed names of the command's flags which were not set, for dynamic completion.
func unusedFlags(cmd *cobra.Command) []string {
	var flags []string
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if !flag.Changed {
			flags = append(flags, "--"+flag.Name)
		}
	})
	return flags
}
