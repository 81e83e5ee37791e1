package formatters

import "github.com/crytic/contest/logging/colors"

// Patterns locating the parts of a test report that are colorized for console output.
const (
	// passRegex matches the [PASS] status of a result line
	passRegex = `(\[PASS\])`
	// rejectedRegex matches the [REJECTED] status of a result line
	rejectedRegex = `(\[REJECTED\])`
	// failRegex matches the [FAIL] status of a result line, along with its reason if any
	failRegex = `(\[FAIL[^\]]*\])`
	// statsRegex matches the statistics of a result line, e.g. (gas: 2310) or (runs: 256, reverts: 3)
	statsRegex = `(\((?:gas|runs): [^)]*\))`
	// counterexampleRegex matches the counterexample header of a failure
	counterexampleRegex = `(Counterexample:)`
	// summaryRegex captures the passed and failed counts of a suite summary
	summaryRegex = `(\d+) passed; (\d+) failed`
)

const (
	// passedColor is the color of [PASS] and of the number of passed tests
	passedColor = colors.GREEN
	// failedColor is the color of [FAIL] and of the number of failed tests
	failedColor = colors.RED
	// rejectedColor is the color of [REJECTED]
	rejectedColor = colors.YELLOW
	// statsColor is the color of result statistics
	statsColor = colors.DARK_GRAY
)
