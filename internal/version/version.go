// Package version reports the pethublocal build.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Set at release time:
//
//	go build -ldflags="-X github.com/plambrechtsen/pethublocal/internal/version.Version=v0.3.0 \
//	                   -X github.com/plambrechtsen/pethublocal/internal/version.Commit=abc1234"
//
// Local builds fall back to the VCS stamp in the binary's build info.
var (
	Version = ""
	Commit  = ""

	// GoVersion is the toolchain that built the binary
	GoVersion = ""
)

func init() {
	fromBuildInfo()
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromBuildInfo fills whatever ldflags left empty from the embedded VCS
// settings.
func fromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	GoVersion = info.GoVersion

	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}

	if rev := settings["vcs.revision"]; Commit == "" && rev != "" {
		if len(rev) > 7 {
			rev = rev[:7]
		}
		if settings["vcs.modified"] == "true" {
			rev += "-dirty"
		}
		Commit = rev
	}

	if Version == "" {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			Version = v
		} else if t, err := time.Parse(time.RFC3339, settings["vcs.time"]); err == nil {
			Version = "dev-" + t.Format("20060102")
		}
	}
}

// Full returns the version with commit and toolchain.
func Full() string {
	if GoVersion == "" {
		return fmt.Sprintf("%s (commit: %s)", Version, Commit)
	}
	return fmt.Sprintf("%s (commit: %s, %s)", Version, Commit, GoVersion)
}
