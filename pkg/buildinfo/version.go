// Package buildinfo provides build-time version information.
//
// Variables are set via ldflags during build:
//
//	go build -ldflags "-X github.com/ulauncher/extapi/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/ulauncher/extapi/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/ulauncher/extapi/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Without ldflags, Commit falls back to the VCS revision Go embeds in the
// binary.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

const (
	unsetCommit = "none"
	unsetDate   = "unknown"
)

var (
	// Version is the semantic version (e.g., "v1.2.3").
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = unsetCommit

	// Date is the build timestamp.
	Date = unsetDate
)

func init() {
	if Commit != unsetCommit {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			Commit = s.Value
		case "vcs.time":
			if Date == unsetDate {
				Date = s.Value
			}
		}
	}
}

// String returns the formatted build information.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}

// Template returns the version template string for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}

// UserAgent identifies the service in outgoing requests.
func UserAgent() string {
	return "extapi/" + Version
}

// Deployment returns the commit and build date to report, preferring the
// values the deployment environment provides.
func Deployment(commit, date string) (string, string) {
	if commit == "" && Commit != unsetCommit {
		commit = Commit
	}
	if date == "" && Date != unsetDate {
		date = Date
	}
	return commit, date
}
