package fuzzing

import (
	"github.com/crytic/contest/events"
)

// Events defines event emitters for test runs.
type Events struct {
	// TestFinished emits events when a single test function of a suite finished.
	TestFinished events.EventEmitter[TestFinishedEvent]

	// SuiteFinished emits events when every test function of a suite finished.
	SuiteFinished events.EventEmitter[SuiteFinishedEvent]
}

// TestFinishedEvent describes an event where a test function finished.
type TestFinishedEvent struct {
	// ContractName describes the name of the test contract.
	ContractName string

	// Signature describes the signature of the test function.
	Signature string

	// Result describes the outcome of the test.
	Result *TestResult
}

// SuiteFinishedEvent describes an event where a suite finished.
type SuiteFinishedEvent struct {
	// Result describes the outcome of the suite.
	Result *SuiteResult
}
