package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/crytic/contest/compilation/abiutils"
	"github.com/crytic/contest/fuzzing"
	"github.com/crytic/contest/logging/formatters"
	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/olekukonko/tablewriter"
)

// formatResultLine renders a single result, e.g. "[PASS] testA() (gas: 2310)" or "[FAIL: boom] testB() (gas: 0)".
func formatResultLine(signature string, result *fuzzing.TestResult) string {
	if result.Rejected {
		return fmt.Sprintf("[REJECTED] %s (%s)", signature, result.Kind)
	}
	status := "[PASS]"
	if !result.Success {
		status = "[FAIL]"
		if reason := result.Reason(); reason != "" {
			status = fmt.Sprintf("[FAIL: %s]", reason)
		}
	}
	line := fmt.Sprintf("%s %s (%s)", status, signature, result.Kind)
	if result.Success && result.Reason() != "" {
		line += " " + result.Reason()
	}
	return line
}

// formatCounterexample renders the counterexample of a result, or an empty string if it has none.
func formatCounterexample(result *fuzzing.TestResult) string {
	if result.Counterexample == nil {
		return ""
	}
	if !result.Counterexample.IsSequence() {
		return "Counterexample: " + result.Counterexample.String()
	}
	var b strings.Builder
	b.WriteString("Counterexample:")
	for _, line := range strings.Split(result.Counterexample.String(), "\n") {
		b.WriteString("\n    ")
		b.WriteString(line)
	}
	return b.String()
}

// writeSuiteReport writes the results of a suite and its warnings. For failing tests it also writes their
// counterexamples and, if showTraces is set, their traces and event logs decoded against abis.
func writeSuiteReport(w io.Writer, suite *fuzzing.SuiteResult, showTraces bool, abis []*abi.ABI) {
	fmt.Fprintf(w, "\nRan %d tests for %s\n", len(suite.TestResults), suite.ContractName)
	for _, warning := range suite.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}

	for _, signature := range suite.Signatures() {
		result := suite.TestResults[signature]
		fmt.Fprintln(w, formatters.TestReportFormatter(formatResultLine(signature, result)))
		if result.Success {
			continue
		}
		if counterexample := formatCounterexample(result); counterexample != "" {
			fmt.Fprintln(w, "  "+formatters.TestReportFormatter(counterexample))
		}
		if showTraces {
			for _, entry := range result.Traces {
				if entry.Trace == nil {
					continue
				}
				fmt.Fprintf(w, "  Traces (%s):\n", entry.Kind)
				for _, line := range strings.Split(strings.TrimRight(entry.Trace.String(), "\n"), "\n") {
					fmt.Fprintln(w, "    "+line)
				}
			}
			if len(result.Logs) > 0 {
				fmt.Fprintln(w, "  Logs:")
				for _, eventLog := range result.Logs {
					fmt.Fprintln(w, "    "+abiutils.FormatEventLog(eventLog, abis...))
				}
			}
		}
	}

	outcome := "ok"
	if suite.Failures() > 0 {
		outcome = "FAILED"
	}
	fmt.Fprintln(w, formatters.TestSummaryFormatter(fmt.Sprintf("Suite result: %s. %d passed; %d failed%s; finished in %s",
		outcome, suite.Successes(), suite.Failures(), formatRejections(suite.Rejections()), suite.Duration.Round(time.Millisecond))))
}

// formatRejections renders the rejected count of a summary, or nothing if no test was rejected.
func formatRejections(rejected int) string {
	if rejected == 0 {
		return ""
	}
	return fmt.Sprintf("; %d rejected", rejected)
}

// writeRunSummary writes a table of per-suite totals followed by an overall summary line. It returns the number of
// failing tests.
func writeRunSummary(w io.Writer, results map[string]*fuzzing.SuiteResult, elapsed time.Duration) int {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Test Suite", "Passed", "Failed", "Rejected", "Duration"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_RIGHT})

	passed, failed, rejected := 0, 0, 0
	for _, name := range names {
		suite := results[name]
		passed += suite.Successes()
		failed += suite.Failures()
		rejected += suite.Rejections()
		table.Append([]string{name, fmt.Sprintf("%d", suite.Successes()), fmt.Sprintf("%d", suite.Failures()),
			fmt.Sprintf("%d", suite.Rejections()), suite.Duration.Round(time.Millisecond).String()})
	}

	fmt.Fprintln(w)
	table.Render()
	fmt.Fprintln(w, formatters.TestSummaryFormatter(fmt.Sprintf("Ran %d test suites in %s: %d passed; %d failed%s (%d total tests)",
		len(results), elapsed.Round(time.Millisecond), passed, failed, formatRejections(rejected), passed+failed+rejected)))
	return failed
}
