// Package version reports the contest build, reading VCS metadata from the embedded build info.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the semantic version of the build. It can be overridden via ldflags.
var Version = "0.1.0"

// Info describes the running build.
type Info struct {
	Version   string
	Commit    string
	Dirty     bool
	GoVersion string
}

// GetInfo returns the version information of the running binary.
func GetInfo() Info {
	info := Info{Version: Version, GoVersion: runtime.Version()}
	if build, ok := debug.ReadBuildInfo(); ok {
		info = info.withSettings(build.Settings)
	}
	return info
}

func (i Info) withSettings(settings []debug.BuildSetting) Info {
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			i.Commit = setting.Value
			if len(i.Commit) > 7 {
				i.Commit = i.Commit[:7]
			}
		case "vcs.modified":
			i.Dirty = setting.Value == "true"
		}
	}
	return i
}

// Short returns the single line version printed by --version, e.g. "0.1.0+abc1234-dirty".
func (i Info) Short() string {
	if i.Commit == "" {
		return i.Version
	}
	v := i.Version + "+" + i.Commit
	if i.Dirty {
		v += "-dirty"
	}
	return v
}

// String returns the output of the version command.
func (i Info) String() string {
	return fmt.Sprintf("contest version %s\n  Go version: %s\n", i.Short(), i.GoVersion)
}
