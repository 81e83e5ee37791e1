package config

import (
	"encoding/json"
	"math/big"
	"os"
	"strings"

	chainConfig "github.com/crytic/contest/chain/config"
	"github.com/crytic/contest/compilation"
	"github.com/crytic/contest/fuzzing"
	"github.com/crytic/contest/utils"
	"github.com/crytic/medusa-geth/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ProjectConfig describes the configuration of a project's test runs.
type ProjectConfig struct {
	// Fuzzing describes the configuration shared by every suite: workers, seeding, accounts and budgets.
	Fuzzing FuzzingConfig `json:"fuzzing"`

	// Testing describes which tests run and how invariant campaigns explore.
	Testing TestingConfig `json:"testing"`

	// Chain describes the configuration of the execution environment every suite runs in.
	Chain chainConfig.TestChainConfig `json:"chain"`

	// Compilation describes how artifacts are built and loaded.
	Compilation *compilation.CompilationConfig `json:"compilation"`

	// Logging describes the configuration used for logging.
	Logging LoggingConfig `json:"logging"`
}

// FuzzingConfig describes the configuration options shared by every suite.
type FuzzingConfig struct {
	// Workers describes the number of suites, and of tests within a suite, which run in parallel.
	Workers int `json:"workers"`

	// Seed describes the base seed for every random provider. Runs with the same seed generate the same inputs.
	Seed int64 `json:"seed"`

	// FuzzRuns describes how many accepted cases each fuzz test executes.
	FuzzRuns int `json:"fuzzRuns"`

	// MaxLocalRejects describes how many consecutive rejected cases a fuzz test or campaign tolerates.
	MaxLocalRejects int `json:"maxLocalRejects"`

	// MaxGlobalRejects describes how many rejected cases a fuzz test or campaign tolerates in total.
	MaxGlobalRejects int `json:"maxGlobalRejects"`

	// FailureDirectory describes where counterexamples are persisted between runs, relative to the project
	// directory. An empty string disables persistence.
	FailureDirectory string `json:"failureDirectory"`

	// DeployerAddress describes the account deploying and calling test contracts.
	DeployerAddress string `json:"deployerAddress"`

	// SenderAddresses describes the accounts sending the calls of invariant campaigns.
	SenderAddresses []string `json:"senderAddresses"`

	// ContractBalance describes the balance of each test contract and the deployer once deployed.
	ContractBalance ContractBalance `json:"contractBalance"`
}

// TestingConfig describes which tests run and how invariants are explored.
type TestingConfig struct {
	// IncludeFuzzTests enables fuzz tests and invariants.
	IncludeFuzzTests bool `json:"includeFuzzTests"`

	// MatchTest describes a regular expression test signatures must match to run. Empty matches everything.
	MatchTest string `json:"matchTest"`

	// MatchContract describes a regular expression test contract names must match to run. Empty matches
	// everything.
	MatchContract string `json:"matchContract"`

	// InvariantRuns describes how many call sequences each invariant campaign explores.
	InvariantRuns int `json:"invariantRuns"`

	// InvariantDepth describes the number of calls in each explored sequence.
	InvariantDepth int `json:"invariantDepth"`

	// InvariantFailOnRevert describes whether a reverted call breaks every invariant.
	InvariantFailOnRevert bool `json:"invariantFailOnRevert"`

	// InvariantCallOverride enables injecting additional calls between the calls of explored sequences.
	InvariantCallOverride bool `json:"invariantCallOverride"`

	// InvariantTargetMethods restricts campaign targets to the listed "<contract>.<signature>" methods.
	InvariantTargetMethods []string `json:"invariantTargetMethods"`

	// InvariantExcludedMethods removes the listed "<contract>.<signature>" methods from campaign targets.
	InvariantExcludedMethods []string `json:"invariantExcludedMethods"`
}

// LoggingConfig describes the configuration options used for logging
type LoggingConfig struct {
	// Level describes whether logs of certain severity levels (eg info, warning, etc.) will be emitted or discarded.
	// Increasing level values represent more severe logs
	Level zerolog.Level `json:"level"`

	// LogDirectory describes the directory where structured log _files_ will be outputted. If the string is empty, then
	// no log files are kept
	LogDirectory string `json:"logDirectory"`

	// NoColor indicates whether or not log messages should be displayed with colored formatting.
	NoColor bool `json:"noColor"`
}

// ContractBalance is a balance which is written in JSON as a decimal string ("1e18"), or a hex string ("0x1337").
type ContractBalance struct {
	big.Int
}

// UnmarshalJSON parses a balance from a JSON string. An empty string is a zero balance.
func (b *ContractBalance) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.WithStack(err)
	}
	s = strings.TrimSpace(s)

	switch {
	case s == "":
		b.SetInt64(0)
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		if _, ok := b.SetString(s[2:], 16); !ok {
			return errors.Errorf("invalid hex balance %q", s)
		}
	default:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return errors.Wrapf(err, "invalid balance %q", s)
		}
		if !d.IsInteger() {
			return errors.Errorf("balance %q is not a whole number", s)
		}
		b.Set(d.BigInt())
	}
	return nil
}

// MarshalJSON writes the balance as a decimal string.
func (b ContractBalance) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Int.String())
}

// Uint256 converts the balance. Returns an error if it is negative or does not fit in 256 bits.
func (b *ContractBalance) Uint256() (*uint256.Int, error) {
	if b.Sign() < 0 {
		return nil, errors.Errorf("balance %s is negative", b.String())
	}
	value, overflow := uint256.FromBig(&b.Int)
	if overflow {
		return nil, errors.Errorf("balance %s does not fit in 256 bits", b.String())
	}
	return value, nil
}

// ReadProjectConfigFromFile reads a JSON-serialized ProjectConfig from a provided file path. Missing fields keep
// their default values.
// Returns the ProjectConfig if it succeeds, or an error if one occurs.
func ReadProjectConfigFromFile(path string) (*ProjectConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	projectConfig, err := GetDefaultProjectConfig()
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(b, projectConfig); err != nil {
		return nil, errors.Wrapf(err, "could not parse config %q", path)
	}
	return projectConfig, nil
}

// WriteToFile writes the ProjectConfig to a provided file path in a JSON-serialized format.
// Returns an error if one occurs.
func (p *ProjectConfig) WriteToFile(path string) error {
	b, err := json.MarshalIndent(p, "", "\t")
	if err != nil {
		return errors.WithStack(err)
	}

	if err = os.WriteFile(path, b, 0644); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Validate validates that the ProjectConfig meets certain requirements.
// Returns an error if one occurs.
func (p *ProjectConfig) Validate() error {
	if p.Fuzzing.Workers <= 0 {
		return errors.Errorf("worker count must be a positive number")
	}
	if p.Fuzzing.FuzzRuns < 0 || p.Testing.InvariantRuns < 0 || p.Testing.InvariantDepth < 0 {
		return errors.Errorf("fuzz runs, invariant runs and invariant depth must not be negative")
	}
	if p.Fuzzing.MaxLocalRejects < 0 || p.Fuzzing.MaxGlobalRejects < 0 {
		return errors.Errorf("reject limits must not be negative")
	}

	if _, err := utils.HexStringsToAddresses(p.Fuzzing.SenderAddresses); err != nil {
		return errors.Errorf("malformed sender address(es)")
	}
	if p.Testing.IncludeFuzzTests && len(p.Fuzzing.SenderAddresses) == 0 {
		return errors.Errorf("at least one sender address must be provided")
	}
	if _, err := utils.HexStringToAddress(p.Fuzzing.DeployerAddress); err != nil {
		return errors.Errorf("malformed deployer address")
	}
	if _, err := p.Fuzzing.ContractBalance.Uint256(); err != nil {
		return errors.Wrap(err, "invalid contract balance")
	}

	if p.Chain.GasLimit == 0 {
		return errors.Errorf("chain gas limit cannot be zero")
	}
	if p.Compilation != nil {
		if err := p.Compilation.Validate(); err != nil {
			return err
		}
	}
	if _, err := p.Filter(); err != nil {
		return err
	}
	return nil
}

// Deployer returns the account deploying and calling test contracts.
func (p *ProjectConfig) Deployer() (common.Address, error) {
	return utils.HexStringToAddress(p.Fuzzing.DeployerAddress)
}

// Filter returns the test filter described by the testing configuration.
func (p *ProjectConfig) Filter() (*fuzzing.PatternFilter, error) {
	return fuzzing.NewPatternFilter(p.Testing.MatchTest, p.Testing.MatchContract)
}

// TestOptions derives the options every suite runs with.
func (p *ProjectConfig) TestOptions() (fuzzing.TestOptions, error) {
	senders, err := utils.HexStringsToAddresses(p.Fuzzing.SenderAddresses)
	if err != nil {
		return fuzzing.TestOptions{}, errors.Wrap(err, "malformed sender address(es)")
	}
	options := fuzzing.TestOptions{
		IncludeFuzzTests:         p.Testing.IncludeFuzzTests,
		FuzzRuns:                 p.Fuzzing.FuzzRuns,
		FuzzMaxLocalRejects:      p.Fuzzing.MaxLocalRejects,
		FuzzMaxGlobalRejects:     p.Fuzzing.MaxGlobalRejects,
		InvariantRuns:            p.Testing.InvariantRuns,
		InvariantDepth:           p.Testing.InvariantDepth,
		InvariantRevertPolicy:    fuzzing.RevertPolicyFromFailOnRevert(p.Testing.InvariantFailOnRevert),
		InvariantCallOverride:    p.Testing.InvariantCallOverride,
		InvariantTargetMethods:   p.Testing.InvariantTargetMethods,
		InvariantExcludedMethods: p.Testing.InvariantExcludedMethods,
		Senders:                  senders,
		Seed:                     p.Fuzzing.Seed,
		Workers:                  p.Fuzzing.Workers,
	}
	return options, options.Validate()
}
