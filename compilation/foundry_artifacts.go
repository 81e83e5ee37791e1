package compilation

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/crytic/contest/compilation/types"
	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/pkg/errors"
)

// foundryBytecode describes the "bytecode" and "deployedBytecode" objects of a Foundry artifact.
type foundryBytecode struct {
	Object         string                                     `json:"object"`
	LinkReferences map[string]map[string][]foundryLinkReference `json:"linkReferences"`
}

type foundryLinkReference struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// foundryArtifact describes the subset of a Foundry build artifact (out/<File>.sol/<Name>.json) that is loaded.
type foundryArtifact struct {
	Abi              json.RawMessage `json:"abi"`
	Bytecode         foundryBytecode `json:"bytecode"`
	DeployedBytecode foundryBytecode `json:"deployedBytecode"`
	Metadata         *struct {
		Compiler struct {
			Version string `json:"version"`
		} `json:"compiler"`
		Settings struct {
			CompilationTarget map[string]string `json:"compilationTarget"`
		} `json:"settings"`
	} `json:"metadata"`
}

// LoadFoundryArtifacts walks a Foundry artifacts directory and parses every contract artifact it contains. The
// build-info directory and files that do not parse as contract artifacts are skipped. Contracts are returned sorted
// by fully qualified name.
func LoadFoundryArtifacts(directory string) ([]*types.CompiledContract, error) {
	if _, err := os.Stat(directory); err != nil {
		return nil, errors.Wrapf(err, "could not read artifacts directory %q", directory)
	}

	contracts := make([]*types.CompiledContract, 0)
	err := filepath.WalkDir(directory, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if entry.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".json" {
			return nil
		}

		b, err := os.ReadFile(path)
		if err != nil {
			return errors.WithStack(err)
		}
		contract, ok, err := parseFoundryArtifact(path, b)
		if err != nil {
			return errors.Wrapf(err, "could not parse artifact %q", path)
		}
		if ok {
			contracts = append(contracts, contract)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(contracts, func(i, j int) bool {
		return contracts[i].FullyQualifiedName() < contracts[j].FullyQualifiedName()
	})
	return contracts, nil
}

// parseFoundryArtifact parses a single artifact file. The boolean return is false when the file is not a contract
// artifact (e.g. a cache file).
func parseFoundryArtifact(path string, b []byte) (*types.CompiledContract, bool, error) {
	var artifact foundryArtifact
	if err := json.Unmarshal(b, &artifact); err != nil {
		return nil, false, nil
	}
	if len(artifact.Abi) == 0 {
		return nil, false, nil
	}

	contractAbi, err := abi.JSON(strings.NewReader(string(artifact.Abi)))
	if err != nil {
		return nil, false, err
	}

	contract := &types.CompiledContract{
		Name:                strings.TrimSuffix(filepath.Base(path), ".json"),
		SourcePath:          filepath.Base(filepath.Dir(path)),
		Abi:                 contractAbi,
		InitBytecodeHex:     artifact.Bytecode.Object,
		RuntimeBytecodeHex:  artifact.DeployedBytecode.Object,
		LibraryPlaceholders: make(map[string]string),
	}

	if artifact.Metadata != nil {
		contract.CompilerVersion = artifact.Metadata.Compiler.Version
		for sourcePath, name := range artifact.Metadata.Settings.CompilationTarget {
			contract.SourcePath = sourcePath
			contract.Name = name
		}
	}

	for _, references := range []map[string]map[string][]foundryLinkReference{
		artifact.Bytecode.LinkReferences, artifact.DeployedBytecode.LinkReferences,
	} {
		for sourcePath, libraries := range references {
			for library := range libraries {
				fullyQualifiedName := sourcePath + ":" + library
				contract.LibraryPlaceholders[types.GenerateLibraryPlaceholder(fullyQualifiedName)] = fullyQualifiedName
			}
		}
	}

	return contract, true, nil
}
