package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func withBuildInfo(t *testing.T, bi *debug.BuildInfo) {
	t.Helper()
	prev := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, bi != nil }
	t.Cleanup(func() { readBuildInfo = prev })
}

func TestResolveFromBuildInfo(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	})

	info := Resolve()
	if info.Commit != "0123456789abcdef0123" {
		t.Fatalf("commit: got %q", info.Commit)
	}
	if info.Version != "2026-01-02T03:04:05Z" {
		t.Fatalf("version should fall back to the vcs time, got %q", info.Version)
	}
	if got := String(); got != "2026-01-02T03:04:05Z (0123456789ab+dirty)" {
		t.Fatalf("String: got %q", got)
	}
}

func TestResolveWithoutBuildInfo(t *testing.T) {
	withBuildInfo(t, nil)

	info := Resolve()
	if !strings.HasPrefix(info.Version, "dev-") {
		t.Fatalf("version: got %q", info.Version)
	}
	if info.GoVersion == "" {
		t.Fatal("missing go version")
	}
	if String() != info.Version {
		t.Fatalf("String without commit should be the version, got %q", String())
	}
}
