package utils

import (
	"fmt"
	"sort"
	"strings"

	"github.com/crytic/medusa-geth/accounts/abi"
)

const (
	// SetUpHookName is the canonical name of the function run once after the test contract is deployed.
	SetUpHookName = "setUp"

	// testPrefix marks unit and fuzz tests.
	testPrefix = "test"

	// shouldFailPrefix marks tests which pass only if they fail.
	shouldFailPrefix = "testFail"

	// invariantPrefix marks invariants.
	invariantPrefix = "invariant"
)

// TestFunctionKind describes how a discovered test function is executed.
type TestFunctionKind int

const (
	// TestFunctionKindUnit describes a test without inputs, run once.
	TestFunctionKindUnit TestFunctionKind = iota
	// TestFunctionKindFuzz describes a test with inputs, run against generated arguments.
	TestFunctionKindFuzz
	// TestFunctionKindInvariant describes a function checked after every call of an invariant campaign.
	TestFunctionKindInvariant
)

// String returns a lowercase name for the kind.
func (k TestFunctionKind) String() string {
	switch k {
	case TestFunctionKindUnit:
		return "unit"
	case TestFunctionKindFuzz:
		return "fuzz"
	case TestFunctionKindInvariant:
		return "invariant"
	default:
		return fmt.Sprintf("TestFunctionKind(%d)", int(k))
	}
}

// TestFunction describes a discovered test function.
type TestFunction struct {
	// Method describes the ABI method of the test.
	Method abi.Method

	// Kind describes how the test is executed.
	Kind TestFunctionKind

	// ShouldFail indicates the test passes only if it fails.
	ShouldFail bool
}

// Signature returns the canonical signature of the test function, e.g. "testDeposit(uint256)".
func (f *TestFunction) Signature() string {
	return f.Method.Sig
}

// TestMethods describes the result of classifying the methods of a test contract.
type TestMethods struct {
	// Tests describes the unit and fuzz tests which passed the filter, sorted by signature.
	Tests []*TestFunction

	// Invariants describes the invariants which passed the filter, sorted by signature.
	Invariants []*TestFunction

	// SetUpHooks describes every method whose name is "setup" regardless of casing.
	SetUpHooks []abi.Method

	// HasInvariants indicates whether the contract declares any invariant, whether or not it passed the filter.
	HasInvariants bool

	// Warnings describes non-fatal problems found while classifying.
	Warnings []string
}

// NeedsSetUp indicates whether the canonical setUp hook should be called after deployment.
func (m *TestMethods) NeedsSetUp() bool {
	return len(m.SetUpHooks) == 1 && m.SetUpHooks[0].Name == SetUpHookName
}

// HasMultipleSetUps indicates whether the contract declares more than one setup hook.
func (m *TestMethods) HasMultipleSetUps() bool {
	return len(m.SetUpHooks) > 1
}

// ClassifyTestMethods sorts a contract's methods into unit tests, fuzz tests, invariants and setup hooks.
// matchesTest filters tests and invariants by signature; a nil matcher accepts everything. Tests taking inputs are
// dropped when includeFuzzTests is false.
func ClassifyTestMethods(contractAbi *abi.ABI, matchesTest func(signature string) bool, includeFuzzTests bool) *TestMethods {
	methods := &TestMethods{
		Tests:      make([]*TestFunction, 0),
		Invariants: make([]*TestFunction, 0),
		SetUpHooks: make([]abi.Method, 0),
		Warnings:   make([]string, 0),
	}
	if matchesTest == nil {
		matchesTest = func(string) bool { return true }
	}

	// ABI methods live in a map, sort them so classification is deterministic.
	sorted := make([]abi.Method, 0, len(contractAbi.Methods))
	for _, method := range contractAbi.Methods {
		sorted = append(sorted, method)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Sig < sorted[j].Sig
	})

	for _, method := range sorted {
		switch {
		case strings.ToLower(method.Name) == strings.ToLower(SetUpHookName):
			methods.SetUpHooks = append(methods.SetUpHooks, method)
			if method.Name != SetUpHookName {
				methods.Warnings = append(methods.Warnings,
					fmt.Sprintf("Found invalid setup function \"%s\" did you mean \"setUp()\"?", method.Sig))
			}
		case strings.HasPrefix(method.Name, testPrefix):
			if !matchesTest(method.Sig) {
				continue
			}
			kind := TestFunctionKindUnit
			if len(method.Inputs) > 0 {
				if !includeFuzzTests {
					continue
				}
				kind = TestFunctionKindFuzz
			}
			methods.Tests = append(methods.Tests, &TestFunction{
				Method:     method,
				Kind:       kind,
				ShouldFail: strings.HasPrefix(method.Name, shouldFailPrefix),
			})
		case strings.HasPrefix(method.Name, invariantPrefix):
			methods.HasInvariants = true
			if matchesTest(method.Sig) {
				methods.Invariants = append(methods.Invariants, &TestFunction{Method: method, Kind: TestFunctionKindInvariant})
			}
		}
	}
	return methods
}

// IsTestEntryPoint indicates whether a method is a test, an invariant or a setup hook. Such methods are never used
// as invariant campaign targets.
func IsTestEntryPoint(method abi.Method) bool {
	return strings.HasPrefix(method.Name, testPrefix) ||
		strings.HasPrefix(method.Name, invariantPrefix) ||
		strings.ToLower(method.Name) == strings.ToLower(SetUpHookName)
}

// HasTestEntryPoints indicates whether a contract declares any test or invariant.
func HasTestEntryPoints(contractAbi *abi.ABI) bool {
	for _, method := range contractAbi.Methods {
		if strings.HasPrefix(method.Name, testPrefix) || strings.HasPrefix(method.Name, invariantPrefix) {
			return true
		}
	}
	return false
}
