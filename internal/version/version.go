// Package version reports the build identity of the streamgen binary.
package version

import (
	"runtime"
	"runtime/debug"
	"time"
)

var (
	// Version is the release version (set via -ldflags).
	Version = ""
	// Commit is the git commit hash (set via -ldflags).
	Commit = ""
	// BuildTime is the build timestamp (set via -ldflags).
	BuildTime = ""
)

type Info struct {
	Version   string
	Commit    string
	BuildTime string
	GoVersion string
	Modified  bool
}

// readBuildInfo is a seam for tests.
var readBuildInfo = debug.ReadBuildInfo

// Resolve merges the -ldflags values with the VCS stamp the go tool embeds.
// Values set at link time win.
func Resolve() Info {
	info := Info{Version: Version, Commit: Commit, BuildTime: BuildTime, GoVersion: runtime.Version()}

	if bi, ok := readBuildInfo(); ok {
		if v := bi.Main.Version; v != "(devel)" {
			fill(&info.Version, v)
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				fill(&info.Commit, s.Value)
			case "vcs.time":
				fill(&info.BuildTime, s.Value)
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}

	fill(&info.Version, info.BuildTime)
	fill(&info.Version, "dev-"+time.Now().UTC().Format("20060102"))
	return info
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func String() string {
	info := Resolve()
	if info.Commit == "" {
		return info.Version
	}
	s := info.Version + " (" + shortCommit(info.Commit)
	if info.Modified {
		s += "+dirty"
	}
	return s + ")"
}

func shortCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}
