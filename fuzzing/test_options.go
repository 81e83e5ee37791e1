package fuzzing

import (
	"fmt"
	"runtime"

	"github.com/crytic/medusa-geth/common"
	"github.com/pkg/errors"
)

// RevertPolicy describes how an invariant campaign treats a reverted call.
type RevertPolicy int

const (
	// RevertPolicySkip ignores reverted calls; they stay in the sequence but cannot break an invariant.
	RevertPolicySkip RevertPolicy = iota
	// RevertPolicyFail breaks every invariant still holding as soon as a call reverts.
	RevertPolicyFail
)

// String returns a lowercase name for the policy.
func (p RevertPolicy) String() string {
	switch p {
	case RevertPolicySkip:
		return "skip"
	case RevertPolicyFail:
		return "fail"
	default:
		return fmt.Sprintf("RevertPolicy(%d)", int(p))
	}
}

// RevertPolicyFromFailOnRevert maps the boolean configuration flag to a RevertPolicy.
func RevertPolicyFromFailOnRevert(failOnRevert bool) RevertPolicy {
	if failOnRevert {
		return RevertPolicyFail
	}
	return RevertPolicySkip
}

// TestOptions describes how a suite is run.
type TestOptions struct {
	// IncludeFuzzTests enables fuzz tests and invariants. When disabled, tests taking inputs are not run.
	IncludeFuzzTests bool

	// FuzzRuns describes how many accepted cases each fuzz test executes.
	FuzzRuns int

	// FuzzMaxLocalRejects describes how many consecutive rejected cases a fuzz test or campaign tolerates.
	FuzzMaxLocalRejects int

	// FuzzMaxGlobalRejects describes how many rejected cases a fuzz test or campaign tolerates in total.
	FuzzMaxGlobalRejects int

	// InvariantRuns describes how many call sequences an invariant campaign explores.
	InvariantRuns int

	// InvariantDepth describes the number of calls in each explored sequence.
	InvariantDepth int

	// InvariantRevertPolicy describes how reverted calls affect invariants.
	InvariantRevertPolicy RevertPolicy

	// InvariantCallOverride enables injecting additional calls between the calls of explored sequences.
	InvariantCallOverride bool

	// InvariantTargetMethods restricts campaign targets to the listed "<contract>.<signature>" methods.
	InvariantTargetMethods []string

	// InvariantExcludedMethods removes the listed "<contract>.<signature>" methods from campaign targets.
	InvariantExcludedMethods []string

	// Senders describes the accounts sending the calls of invariant campaigns.
	Senders []common.Address

	// Seed describes the base seed every random provider is derived from.
	Seed int64

	// Workers describes how many tests run in parallel.
	Workers int
}

// DefaultTestOptions returns TestOptions with default values.
func DefaultTestOptions() TestOptions {
	return TestOptions{
		IncludeFuzzTests:      true,
		FuzzRuns:              256,
		FuzzMaxLocalRejects:   1024,
		FuzzMaxGlobalRejects:  65536,
		InvariantRuns:         256,
		InvariantDepth:        15,
		InvariantRevertPolicy: RevertPolicySkip,
		Senders: []common.Address{
			common.HexToAddress("0x10000"),
			common.HexToAddress("0x20000"),
			common.HexToAddress("0x30000"),
		},
		Workers: runtime.NumCPU(),
	}
}

// Validate checks the options for invalid values.
func (o *TestOptions) Validate() error {
	if o.FuzzRuns < 0 || o.InvariantRuns < 0 || o.InvariantDepth < 0 {
		return errors.New("run counts and invariant depth must not be negative")
	}
	if o.FuzzMaxLocalRejects < 0 || o.FuzzMaxGlobalRejects < 0 {
		return errors.New("reject limits must not be negative")
	}
	if o.Workers <= 0 {
		return errors.New("worker count must be positive")
	}
	if len(o.Senders) == 0 && o.IncludeFuzzTests {
		return errors.New("at least one sender must be provided for invariant campaigns")
	}
	return nil
}
