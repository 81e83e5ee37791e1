package compilation

import (
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/crytic/contest/compilation/types"
	"github.com/crytic/contest/utils"
	"github.com/pkg/errors"
)

// CompilationConfig describes how build artifacts are produced and where they are loaded from.
type CompilationConfig struct {
	// BuildCommand describes the command (and arguments) executed before loading artifacts. An empty command
	// skips the build step and loads whatever artifacts already exist.
	BuildCommand []string `json:"buildCommand"`

	// ArtifactsDirectory describes the directory holding Foundry-style JSON artifacts, relative to the project
	// directory unless absolute.
	ArtifactsDirectory string `json:"artifactsDirectory"`

	// MinCompilerVersion describes an optional lower bound on the compiler version of loaded artifacts. Artifacts
	// produced by an older compiler fail to load.
	MinCompilerVersion string `json:"minCompilerVersion,omitempty"`
}

// NewCompilationConfig returns a CompilationConfig with default values: `forge build` into "out".
func NewCompilationConfig() *CompilationConfig {
	return &CompilationConfig{
		BuildCommand:       []string{"forge", "build"},
		ArtifactsDirectory: "out",
	}
}

// Validate checks the config for invalid values.
func (c *CompilationConfig) Validate() error {
	if c.ArtifactsDirectory == "" {
		return errors.New("compilation config must specify an artifacts directory")
	}
	if c.MinCompilerVersion != "" {
		if _, err := semver.NewConstraint(">= " + c.MinCompilerVersion); err != nil {
			return errors.Wrapf(err, "invalid minimum compiler version %q", c.MinCompilerVersion)
		}
	}
	return nil
}

// Compile runs the build command in the project directory and loads the resulting artifacts. The combined command
// output is returned alongside the contracts so callers can surface it on failure.
func (c *CompilationConfig) Compile(projectDirectory string) ([]*types.CompiledContract, string, error) {
	if err := c.Validate(); err != nil {
		return nil, "", err
	}

	var output string
	if len(c.BuildCommand) > 0 {
		cmd := exec.Command(c.BuildCommand[0], c.BuildCommand[1:]...)
		cmd.Dir = projectDirectory
		_, _, combined, err := utils.RunCommandWithOutputAndError(cmd)
		output = string(combined)
		if err != nil {
			return nil, output, errors.Errorf("error while executing %s:\nOUTPUT:\n%s\nERROR: %v",
				strings.Join(c.BuildCommand, " "), output, err)
		}
	}

	artifactsDirectory := c.ArtifactsDirectory
	if !filepath.IsAbs(artifactsDirectory) {
		artifactsDirectory = filepath.Join(projectDirectory, artifactsDirectory)
	}
	contracts, err := LoadFoundryArtifacts(artifactsDirectory)
	if err != nil {
		return nil, output, err
	}

	if c.MinCompilerVersion != "" {
		constraint := ">= " + c.MinCompilerVersion
		for _, contract := range contracts {
			version := contractCompilerVersion(contract)
			if version == nil {
				continue
			}
			satisfied, err := types.CompilerVersionSatisfies(version, constraint)
			if err != nil {
				return nil, output, err
			}
			if !satisfied {
				return nil, output, errors.Errorf("contract %s was compiled with %s, which does not satisfy %s",
					contract.FullyQualifiedName(), version, constraint)
			}
		}
	}
	return contracts, output, nil
}

// contractCompilerVersion resolves the compiler version of a contract, preferring the artifact's reported version
// and falling back to the CBOR metadata embedded in the runtime bytecode.
func contractCompilerVersion(contract *types.CompiledContract) *semver.Version {
	if contract.CompilerVersion != "" {
		if version, err := types.ParseCompilerVersion(contract.CompilerVersion); err == nil {
			return version
		}
	}
	runtime, err := contract.RuntimeBytecode()
	if err != nil {
		return nil
	}
	if metadata := types.ExtractContractMetadata(runtime); metadata != nil {
		return metadata.CompilerVersion()
	}
	return nil
}
