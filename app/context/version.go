package context

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// VersionInfo is the build information of the running binary.
type VersionInfo struct {
	Semantic string
	Commit   string
	Dirty    bool
	Go       string
}

// String returns the version in the format "<semver> (commit <hash>[-dirty], <go version>)".
func (v *VersionInfo) String() string {
	var details []string
	if v.Commit != "" {
		commit := v.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		if v.Dirty {
			commit += "-dirty"
		}
		details = append(details, "commit "+commit)
	}
	if v.Go != "" {
		details = append(details, v.Go)
	}

	if len(details) == 0 {
		return v.Semantic
	}

	return fmt.Sprintf("%s (%s)", v.Semantic, strings.Join(details, ", "))
}

// GetVersion reads the version from the build information embedded in the
// binary.
func GetVersion() (*VersionInfo, error) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil, errors.New("failed reading build information")
	}

	vi := &VersionInfo{Semantic: bi.Main.Version, Go: bi.GoVersion}
	if vi.Semantic == "" {
		vi.Semantic = "(devel)"
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
