package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set through -ldflags "-X github.com/placerec/placerec/cmd/version.Version=...".
var (
	Version   = "unknown-version"
	GitCommit = "unknown-commit"
	BuildTime = "unknown-buildtime"
)

// Info describes the running binary. Fields left unset by ldflags are
// filled from the VCS stamp embedded by the go toolchain.
type Info struct {
	Version   string
	GoVersion string
	GitCommit string
	BuildTime string
	Modified  bool
	Platform  string
}

func Get() Info {
	info := Info{
		Version:   Version,
		GoVersion: runtime.Version(),
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.fill(bi.Settings)
	}
	return info
}

func (info *Info) fill(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if strings.HasPrefix(info.GitCommit, "unknown") {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if strings.HasPrefix(info.BuildTime, "unknown") {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
}

func BuildInfo() string {
	info := Get()
	commit := info.GitCommit
	if info.Modified {
		commit += " (dirty)"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Version:\t %s\n", info.Version)
	fmt.Fprintf(&sb, "Go version:\t %s\n", info.GoVersion)
	fmt.Fprintf(&sb, "Git commit:\t %s\n", commit)
	fmt.Fprintf(&sb, "Built:\t\t %s\n", info.BuildTime)
	fmt.Fprintf(&sb, "OS/Arch:\t %s\n", info.Platform)
	return sb.String()
}
