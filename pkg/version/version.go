// Package version reports what build of the concierge is running.
//
// The commit comes from -ldflags when set (container builds without .git),
// otherwise from the VCS stamp Go embeds in the binary, otherwise "dev".
package version

import "runtime/debug"

// AppName prefixes user-agent strings.
const AppName = "concierge"

const shortCommitLen = 8

// commitOverride is set with -ldflags "-X .../pkg/version.commitOverride=<sha>".
var commitOverride string

// Info describes the running binary.
type Info struct {
	Commit    string `json:"commit"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version,omitempty"`
}

// GitCommit is the short commit hash, or "dev" under go test and non-git builds.
var GitCommit = build.Commit

var build = readBuild(commitOverride)

func readBuild(override string) Info {
	info := Info{Commit: "dev"}
	bi, ok := debug.ReadBuildInfo()
	if ok {
		info.GoVersion = bi.GoVersion
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" {
					info.Commit = short(s.Value)
				}
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}
	if override != "" {
		info.Commit = short(override)
		info.Modified = false
	}
	return info
}

func short(sha string) string {
	if len(sha) > shortCommitLen {
		return sha[:shortCommitLen]
	}
	return sha
}

// Get returns the build description.
func Get() Info {
	return build
}

// Full returns "concierge/<commit>", with a "+dirty" suffix for builds from
// a modified tree.
func Full() string {
	v := AppName + "/" + GitCommit
	if build.Modified {
		v += "+dirty"
	}
	return v
}
