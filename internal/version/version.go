// Package version reports the workbench build.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/soyeahso/workbench/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/workbench/internal/version.Commit=abc123
//	  -X github.com/soyeahso/workbench/internal/version.Date=2026-01-01"
//
// Commit and Date fall back to the VCS stamp Go embeds in the binary.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Build describes the running binary.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Dirty     bool   `json:"dirty,omitempty"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

var (
	vcsOnce  sync.Once
	vcsStamp map[string]string
)

func vcs() map[string]string {
	vcsOnce.Do(func() {
		vcsStamp = map[string]string{}
		bi, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range bi.Settings {
			vcsStamp[s.Key] = s.Value
		}
	})
	return vcsStamp
}

// Get returns the build description, preferring ldflags values.
func Get() Build {
	b := Build{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	stamp := vcs()
	if b.Commit == "unknown" && stamp["vcs.revision"] != "" {
		b.Commit = stamp["vcs.revision"]
	}
	if b.Date == "unknown" && stamp["vcs.time"] != "" {
		b.Date = stamp["vcs.time"]
	}
	b.Dirty = stamp["vcs.modified"] == "true"
	return b
}

// Info returns the one-line version banner.
func Info() string {
	b := Get()
	commit := short(b.Commit)
	if b.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("workbench %s (commit: %s, built: %s, %s)", b.Version, commit, b.Date, b.Platform)
}

// UserAgent is sent by the API client.
func UserAgent() string {
	return "workbench/" + Version + " (" + short(Get().Commit) + ")"
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
