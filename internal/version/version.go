// Package version reports build metadata.
package version

import (
	"runtime/debug"
	"strings"
)

// Set at build time with -ldflags "-X".
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// String returns "VERSION [commit=...] [date=...]". Without ldflags the
// module version and VCS revision from the build info are used.
func String() string {
	version, commit, date := Version, Commit, Date
	if info, ok := debug.ReadBuildInfo(); ok {
		if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && commit == "":
				commit = shortRevision(s.Value)
			case s.Key == "vcs.time" && date == "":
				date = s.Value
			}
		}
	}
	parts := []string{strings.TrimSpace(version)}
	if commit = strings.TrimSpace(commit); commit != "" {
		parts = append(parts, "commit="+commit)
	}
	if date = strings.TrimSpace(date); date != "" {
		parts = append(parts, "date="+date)
	}
	return strings.Join(parts, " ")
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
