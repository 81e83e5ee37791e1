package formatters

import (
	"regexp"

	"github.com/crytic/contest/logging/colors"
)

var (
	passPattern           = regexp.MustCompile(passRegex)
	failPattern           = regexp.MustCompile(failRegex)
	rejectedPattern       = regexp.MustCompile(rejectedRegex)
	statsPattern          = regexp.MustCompile(statsRegex)
	counterexamplePattern = regexp.MustCompile(counterexampleRegex)
	summaryPattern        = regexp.MustCompile(summaryRegex)
)

// TestReportFormatter colorizes the status, statistics and counterexample header of test report lines.
func TestReportFormatter(msg string) string {
	msg = passPattern.ReplaceAllString(msg, colors.Colorize(colors.Colorize(`$1`, passedColor), colors.BOLD))
	msg = failPattern.ReplaceAllString(msg, colors.Colorize(colors.Colorize(`$1`, failedColor), colors.BOLD))
	msg = rejectedPattern.ReplaceAllString(msg, colors.Colorize(`$1`, rejectedColor))
	msg = statsPattern.ReplaceAllString(msg, colors.Colorize(`$1`, statsColor))
	msg = counterexamplePattern.ReplaceAllString(msg, colors.Colorize(`$1`, colors.BOLD))
	return msg
}

// TestSummaryFormatter colorizes the passed and failed counts of a summary line such as
// "3 passed; 1 failed; finished in 2s".
func TestSummaryFormatter(msg string) string {
	return summaryPattern.ReplaceAllString(msg,
		colors.Colorize(colors.Colorize(`$1`, passedColor), colors.BOLD)+" passed; "+
			colors.Colorize(colors.Colorize(`$2`, failedColor), colors.BOLD)+" failed")
}
