package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func setBuild(t *testing.T, v, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := Version, Commit, Date
	t.Cleanup(func() {
		Version, Commit, Date = origVersion, origCommit, origDate
	})
	Version, Commit, Date = v, commit, date
}

func TestGet_PrefersLdflags(t *testing.T) {
	setBuild(t, "1.2.3", "abc1234567890", "2026-01-15")

	b := Get()
	assert.Equal(t, "1.2.3", b.Version)
	assert.Equal(t, "abc1234567890", b.Commit)
	assert.Equal(t, "2026-01-15", b.Date)
	assert.Equal(t, runtime.Version(), b.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, b.Platform)
}

func TestInfo(t *testing.T) {
	setBuild(t, "1.2.3", "abc1234567890", "2026-01-15")

	info := Info()
	assert.True(t, strings.HasPrefix(info, "workbench 1.2.3 (commit: abc1234"))
	assert.NotContains(t, info, "abc1234567890")
	assert.Contains(t, info, "built: 2026-01-15")
	assert.Contains(t, info, runtime.GOOS)
}

func TestUserAgent(t *testing.T) {
	setBuild(t, "0.4.0", "0123456789abcdef", "unknown")
	assert.Equal(t, "workbench/0.4.0 (0123456)", UserAgent())
}

func TestShort(t *testing.T) {
	for in, want := range map[string]string{
		"abcdefghij": "abcdefg",
		"abc1234":    "abc1234",
		"abc":        "abc",
		"":           "",
	} {
		assert.Equal(t, want, short(in), in)
	}
}
