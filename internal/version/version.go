// Package version carries the stagec build stamp.
package version

import (
	"runtime/debug"
	"strings"

	"github.com/fatih/color"
)

// Set at link time:
//
//	go build -ldflags "-X staged/internal/version.GitCommit=$(git rev-parse HEAD)"
var (
	Version   = "0.1.0-dev"
	GitCommit = ""
	BuildDate = ""
)

var partColors = [3]*color.Color{
	color.New(color.FgYellow, color.Bold),
	color.New(color.FgGreen, color.Bold),
	color.New(color.FgBlue, color.Bold),
}

// Info is the resolved build stamp.
type Info struct {
	Version string
	Commit  string
	Date    string
	Dirty   bool
}

// Build resolves the stamp. Link-time values win; otherwise the VCS
// settings the go command embedded are used.
func Build() Info {
	info := Info{Version: strings.TrimSpace(Version), Commit: strings.TrimSpace(GitCommit), Date: strings.TrimSpace(BuildDate)}
	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

var readBuildInfo = debug.ReadBuildInfo

// Colored renders Version with major, minor and patch highlighted. Anything
// that is not a dotted triple comes back unchanged.
func Colored() string {
	v := strings.TrimSpace(Version)
	core, suffix := v, ""
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		core, suffix = v[:i], v[i:]
	}
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return v
	}
	for i, p := range parts {
		parts[i] = partColors[i].Sprint(p)
	}
	return strings.Join(parts, ".") + suffix
}

// Short is Version plus the abbreviated commit, with "+dirty" for builds
// from a modified tree.
func Short() string {
	info := Build()
	v := info.Version
	if v == "" {
		v = "dev"
	}
	if c := info.Commit; c != "" {
		if len(c) > 7 {
			c = c[:7]
		}
		if info.Dirty {
			c += "+dirty"
		}
		v += " (" + c + ")"
	}
	return v
}
