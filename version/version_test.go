package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestInfoFormatting tests the version strings with and without VCS metadata.
func TestInfoFormatting(t *testing.T) {
	info := Info{Version: "1.2.3", GoVersion: "go1.23.0"}
	assert.Equal(t, "1.2.3", info.Short())
	assert.Equal(t, "contest version 1.2.3\n  Go version: go1.23.0\n", info.String())

	info = info.withSettings([]debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.modified", Value: "true"},
		{Key: "GOOS", Value: "linux"},
	})
	assert.Equal(t, "1.2.3+0123456-dirty", info.Short())
	assert.Contains(t, info.String(), "contest version 1.2.3+0123456-dirty")
	assert.Equal(t, Version, GetInfo().Version)
}
