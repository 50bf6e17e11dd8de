package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

// withBuild sets ldflags values and embedded build info for one test.
func withBuild(t *testing.T, version, commit, date string, info *debug.BuildInfo) {
	t.Helper()
	origVersion, origCommit, origDate, origRead := Version, Commit, BuildDate, readBuildInfo
	t.Cleanup(func() {
		Version, Commit, BuildDate, readBuildInfo = origVersion, origCommit, origDate, origRead
	})
	Version, Commit, BuildDate = version, commit, date
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
}

func TestCurrent(t *testing.T) {
	embedded := &debug.BuildInfo{
		Main: debug.Module{Version: "v0.4.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-02-01T12:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	tests := []struct {
		name    string
		version string
		commit  string
		date    string
		info    *debug.BuildInfo
		want    Build
	}{
		{
			name:    "ldflags win",
			version: "v1.0.0", commit: "feedface", date: "2026-03-01T00:00:00Z",
			info: embedded,
			want: Build{Version: "v1.0.0", Commit: "feedface", BuildDate: "2026-03-01T00:00:00Z", Modified: true},
		},
		{
			name:    "embedded info fills gaps",
			version: "dev", commit: "unknown", date: "unknown",
			info: embedded,
			want: Build{Version: "v0.4.1", Commit: "0123456789abcdef", BuildDate: "2026-02-01T12:00:00Z", Modified: true},
		},
		{
			name:    "devel module version is ignored",
			version: "dev", commit: "unknown", date: "unknown",
			info: &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
			want: Build{Version: "dev", Commit: "unknown", BuildDate: "unknown"},
		},
		{
			name:    "no build info",
			version: "dev", commit: "unknown", date: "unknown",
			want: Build{Version: "dev", Commit: "unknown", BuildDate: "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withBuild(t, tt.version, tt.commit, tt.date, tt.info)

			got := Current()
			tt.want.GoVersion = runtime.Version()
			tt.want.Platform = runtime.GOOS + "/" + runtime.GOARCH
			if got != tt.want {
				t.Errorf("Current() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestInfo(t *testing.T) {
	withBuild(t, "v1.2.3", "abc123456789", "2026-01-15T10:30:00Z", nil)
	if got, want := Info(), "odin v1.2.3 (abc1234, 2026-01-15T10:30:00Z)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}

	withBuild(t, "v1.2.3", "abc", "unknown", &debug.BuildInfo{
		Settings: []debug.BuildSetting{{Key: "vcs.modified", Value: "true"}},
	})
	if got, want := Info(), "odin v1.2.3 (abc+dirty, unknown)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}
}

func TestFull(t *testing.T) {
	withBuild(t, "v1.2.3", "abc123456789", "2026-01-15T10:30:00Z", nil)

	got := Full()
	lines := strings.Split(got, "\n")
	if len(lines) != 5 {
		t.Fatalf("Full() has %d lines, want 5:\n%s", len(lines), got)
	}
	for _, want := range []string{"odin v1.2.3", "abc123456789", runtime.Version(), runtime.GOOS + "/" + runtime.GOARCH} {
		if !strings.Contains(got, want) {
			t.Errorf("Full() missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "modified") {
		t.Error("clean build should not be marked modified")
	}
}

func TestUserAgent(t *testing.T) {
	withBuild(t, "v0.3.0", "unknown", "unknown", nil)
	if got := UserAgent(); got != "odin/v0.3.0" {
		t.Errorf("UserAgent() = %q, want odin/v0.3.0", got)
	}
	if got := Short(); got != "v0.3.0" {
		t.Errorf("Short() = %q, want v0.3.0", got)
	}
}
