// Package version reports which odin build is running.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set via ldflags, e.g.
// -ldflags="-X github.com/andywolf/odin/internal/version.Version=v1.0.0"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Build describes the running binary. Values missing from ldflags are filled
// from the module and VCS data the Go toolchain embeds, so `go install`
// builds still report something useful.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Current returns the build information of this binary.
func Current() Build {
	b := Build{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	info, ok := readBuildInfo()
	if !ok {
		return b
	}
	if b.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "unknown" {
				b.Commit = s.Value
			}
		case "vcs.time":
			if b.BuildDate == "unknown" {
				b.BuildDate = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

// ShortCommit is the first seven characters of the commit.
func (b Build) ShortCommit() string {
	if len(b.Commit) > 7 {
		return b.Commit[:7]
	}
	return b.Commit
}

// Short returns the version string (e.g., "v1.2.3" or "dev").
func Short() string {
	return Current().Version
}

// Info returns one line, e.g. "odin v1.2.3 (abc1234, 2026-01-15T10:30:00Z)".
// A build from a dirty tree is marked "+dirty".
func Info() string {
	b := Current()
	commit := b.ShortCommit()
	if b.Modified {
		commit += "+dirty"
	}
	return fmt.Sprintf("odin %s (%s, %s)", b.Version, commit, b.BuildDate)
}

// Full returns every field on its own line.
func Full() string {
	b := Current()
	var sb strings.Builder
	fmt.Fprintf(&sb, "odin %s\n", b.Version)
	fmt.Fprintf(&sb, "  commit:   %s\n", b.Commit)
	if b.Modified {
		sb.WriteString("  tree:     modified\n")
	}
	fmt.Fprintf(&sb, "  built:    %s\n", b.BuildDate)
	fmt.Fprintf(&sb, "  go:       %s\n", b.GoVersion)
	fmt.Fprintf(&sb, "  platform: %s", b.Platform)
	return sb.String()
}

// UserAgent identifies odin in outgoing HTTP requests.
func UserAgent() string {
	return "odin/" + Current().Version
}
