package fuzzing

import (
	"regexp"

	"github.com/pkg/errors"
)

// TestFilter decides which contracts and test functions are run.
type TestFilter interface {
	// MatchesTest indicates whether a test function, identified by signature, should run.
	MatchesTest(signature string) bool

	// MatchesContract indicates whether a contract, identified by name, should be tested.
	MatchesContract(name string) bool
}

// PatternFilter is a TestFilter matching regular expressions against test signatures and contract names. An empty
// pattern matches everything.
type PatternFilter struct {
	testPattern     *regexp.Regexp
	contractPattern *regexp.Regexp
}

// NewPatternFilter compiles the provided patterns into a PatternFilter.
func NewPatternFilter(testPattern string, contractPattern string) (*PatternFilter, error) {
	filter := &PatternFilter{}
	var err error
	if testPattern != "" {
		if filter.testPattern, err = regexp.Compile(testPattern); err != nil {
			return nil, errors.Wrapf(err, "invalid test pattern %q", testPattern)
		}
	}
	if contractPattern != "" {
		if filter.contractPattern, err = regexp.Compile(contractPattern); err != nil {
			return nil, errors.Wrapf(err, "invalid contract pattern %q", contractPattern)
		}
	}
	return filter, nil
}

// MatchesTest implements TestFilter.
func (f *PatternFilter) MatchesTest(signature string) bool {
	return f.testPattern == nil || f.testPattern.MatchString(signature)
}

// MatchesContract implements TestFilter.
func (f *PatternFilter) MatchesContract(name string) bool {
	return f.contractPattern == nil || f.contractPattern.MatchString(name)
}
