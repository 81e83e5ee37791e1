package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crytic/contest/fuzzing/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesDefaultConfig(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), DefaultProjectConfigFilename)
	parseFlags(t, initCmd, "--out", outputPath, "--artifacts", "build/out", "--build-command", "make,artifacts")

	require.NoError(t, cmdRunInit(initCmd, nil))

	projectConfig, err := config.ReadProjectConfigFromFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "build/out", projectConfig.Compilation.ArtifactsDirectory)
	assert.Equal(t, []string{"make", "artifacts"}, projectConfig.Compilation.BuildCommand)
	assert.Equal(t, 256, projectConfig.Fuzzing.FuzzRuns)
}

func TestInitOverwritePrompt(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), DefaultProjectConfigFilename)
	require.NoError(t, os.WriteFile(outputPath, []byte("{}"), 0644))
	parseFlags(t, initCmd, "--out", outputPath)

	var out bytes.Buffer
	initCmd.SetOut(&out)
	initCmd.SetIn(strings.NewReader("n\n"))
	t.Cleanup(func() {
		initCmd.SetOut(nil)
		initCmd.SetIn(nil)
	})

	require.NoError(t, cmdRunInit(initCmd, nil))
	assert.Contains(t, out.String(), "Operation canceled.")

	b, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
}

func TestInitForceOverwrites(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), DefaultProjectConfigFilename)
	require.NoError(t, os.WriteFile(outputPath, []byte("{}"), 0644))
	parseFlags(t, initCmd, "--out", outputPath, "--force")

	require.NoError(t, cmdRunInit(initCmd, nil))

	projectConfig, err := config.ReadProjectConfigFromFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "out", projectConfig.Compilation.ArtifactsDirectory)
}

func TestInitRejectsPositionalArgs(t *testing.T) {
	assert.Error(t, cmdValidateInitArgs(initCmd, []string{"foundry"}))
	assert.NoError(t, cmdValidateInitArgs(initCmd, nil))
}
