package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/crytic/contest/chain/types"
	"github.com/crytic/contest/fuzzing"
	"github.com/crytic/contest/logging/colors"
	"github.com/crytic/medusa-geth/common"
	coretypes "github.com/crytic/medusa-geth/core/types"
	"github.com/stretchr/testify/assert"
)

func disableColors(t *testing.T) {
	previous := colors.Enabled()
	colors.DisableColor()
	t.Cleanup(func() {
		if previous {
			colors.EnableColor()
		}
	})
}

func reason(s string) *string {
	return &s
}

func TestFormatResultLine(t *testing.T) {
	assert.Equal(t, "[PASS] testA() (gas: 100)",
		formatResultLine("testA()", &fuzzing.TestResult{Success: true, Kind: fuzzing.StandardTestKind(100)}))
	assert.Equal(t, "[FAIL: boom] testB() (gas: 0)",
		formatResultLine("testB()", &fuzzing.TestResult{FailureReason: reason("boom"), Kind: fuzzing.StandardTestKind(0)}))
	assert.Equal(t, "[FAIL] invariantC() (runs: 4, reverts: 1)",
		formatResultLine("invariantC()", &fuzzing.TestResult{Kind: fuzzing.InvariantTestKind(4, 1)}))
	assert.Equal(t, "[PASS] testD() (gas: 0) note",
		formatResultLine("testD()", &fuzzing.TestResult{Success: true, FailureReason: reason("note")}))
	assert.Equal(t, "[REJECTED] testE() (gas: 0)",
		formatResultLine("testE()", &fuzzing.TestResult{Success: true, Rejected: true, FailureReason: reason("rejected: assumption not satisfied")}))
}

func TestWriteSuiteReport(t *testing.T) {
	disableColors(t)

	call := &fuzzing.BaseCounterExample{
		Sender:   common.HexToAddress("0x10000"),
		Target:   common.HexToAddress("0xabc"),
		Calldata: []byte{0xde, 0xad},
	}
	suite := &fuzzing.SuiteResult{
		ContractName: "CounterTest",
		Duration:     1500 * time.Millisecond,
		Warnings:     []string{"Found invalid setup function \"setup()\" did you mean \"setUp()\"?"},
		TestResults: map[string]*fuzzing.TestResult{
			"testA()": {Success: true, Kind: fuzzing.StandardTestKind(100)},
			"testFuzz(uint256)": {
				FailureReason:  reason("too large"),
				Kind:           fuzzing.FuzzTestKind(12),
				Counterexample: &fuzzing.CounterExample{Single: call},
				Traces: []fuzzing.TraceEntry{{Kind: fuzzing.TraceKindExecution, Trace: &types.CallFrame{
					From: common.HexToAddress("0x10000"),
					To:   common.HexToAddress("0xabc"),
				}}},
			},
			"invariantC()": {
				FailureReason:  reason("invariantC() returned false"),
				Kind:           fuzzing.InvariantTestKind(1, 0),
				Counterexample: &fuzzing.CounterExample{Sequence: []*fuzzing.BaseCounterExample{call, call}},
			},
		},
	}

	var out bytes.Buffer
	writeSuiteReport(&out, suite, false, nil)
	report := out.String()
	assert.Contains(t, report, "Ran 3 tests for CounterTest")
	assert.Contains(t, report, "Warning: Found invalid setup function")
	assert.Contains(t, report, "[PASS] testA() (gas: 100)")
	assert.Contains(t, report, "[FAIL: too large] testFuzz(uint256) (runs: 12)")
	assert.Contains(t, report, "Counterexample: sender=0x0000000000000000000000000000000000010000")
	assert.Contains(t, report, "    1) sender=")
	assert.Contains(t, report, "    2) sender=")
	assert.Contains(t, report, "Suite result: FAILED. 1 passed; 2 failed; finished in 1.5s")
	assert.NotContains(t, report, "Traces")

	out.Reset()
	writeSuiteReport(&out, suite, true, nil)
	assert.Contains(t, out.String(), "Traces (execution):")
	assert.NotContains(t, out.String(), "Logs:")

	suite.TestResults["testFuzz(uint256)"].Logs = []*coretypes.Log{{Address: common.HexToAddress("0xabc")}}
	out.Reset()
	writeSuiteReport(&out, suite, true, nil)
	assert.Contains(t, out.String(), "Logs:")

	suite.TestResults["testAssume()"] = &fuzzing.TestResult{Success: true, Rejected: true}
	out.Reset()
	writeSuiteReport(&out, suite, false, nil)
	assert.Contains(t, out.String(), "[REJECTED] testAssume() (gas: 0)")
	assert.Contains(t, out.String(), "Suite result: FAILED. 1 passed; 2 failed; 1 rejected; finished in 1.5s")
}

func TestWriteRunSummary(t *testing.T) {
	disableColors(t)

	results := map[string]*fuzzing.SuiteResult{
		"test/B.t.sol:BTest": {ContractName: "BTest", TestResults: map[string]*fuzzing.TestResult{
			"testA()": {Success: true},
			"testB()": {},
		}},
		"test/A.t.sol:ATest": {ContractName: "ATest", TestResults: map[string]*fuzzing.TestResult{
			"testA()":      {Success: true},
			"testAssume()": {Success: true, Rejected: true},
		}},
	}

	var out bytes.Buffer
	failed := writeRunSummary(&out, results, 2*time.Second)
	assert.Equal(t, 1, failed)

	summary := out.String()
	assert.Contains(t, summary, "TEST SUITE")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("test/A.t.sol:ATest")), bytes.Index(out.Bytes(), []byte("test/B.t.sol:BTest")))
	assert.Contains(t, summary, "REJECTED")
	assert.Contains(t, summary, "Ran 2 test suites in 2s: 2 passed; 1 failed; 1 rejected (4 total tests)")
}
