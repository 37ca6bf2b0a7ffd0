package context

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// VersionInfo describes the build of the running binary.
type VersionInfo struct {
	Semantic string
	Commit   string
	Dirty    bool
}

func (vi *VersionInfo) String() string {
	if vi.Commit == "" {
		return vi.Semantic
	}
	commit := vi.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if vi.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s)", vi.Semantic, commit)
}

// GetVersion returns the version information embedded in the binary by the
// Go toolchain.
func GetVersion() (*VersionInfo, error) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil, errors.New("build information is unavailable")
	}

	vi := &VersionInfo{Semantic: bi.Main.Version}
	if vi.Semantic == "" || vi.Semantic == "(devel)" {
		vi.Semantic = "v0.0.0-dev"
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			vi.Commit = s.Value
		case "vcs.modified":
			vi.Dirty = s.Value == "true"
		}
	}

	return vi, nil
}
