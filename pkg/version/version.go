package version

import (
	"encoding/json"
	"runtime"
	"runtime/debug"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Info describes the running binary
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Compiler  string `json:"compiler"`
	Platform  string `json:"platform,omitempty"`
	Source    string `json:"source,omitempty"`
	Tag       string `json:"tag,omitempty"`
	Branch    string `json:"branch,omitempty"`
	Hash      string `json:"hash,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
}

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

// Set with -ldflags -X at build time
var (
	GitSource   string
	GitTag      string
	GitBranch   string
	GitHash     string
	GoBuildTime string
)

const shortHash = 12

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Version returns the git tag, the branch, the short revision or "dev",
// whichever is found first.
func Version() string {
	switch {
	case GitTag != "":
		return GitTag
	case GitBranch != "":
		return GitBranch
	}
	if hash := Get("").Hash; hash != "" {
		return hash[:min(len(hash), shortHash)]
	}
	return "dev"
}

// Get returns build metadata for the named executable. Values set at link
// time take precedence over the build info embedded by the toolchain.
func Get(name string) Info {
	info := Info{
		Name:      name,
		Compiler:  runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Source:    GitSource,
		Tag:       GitTag,
		Branch:    GitBranch,
		Hash:      GitHash,
		BuildTime: GoBuildTime,
	}
	if build, ok := debug.ReadBuildInfo(); ok {
		if info.Source == "" {
			info.Source = build.Main.Path
		}
		for _, s := range build.Settings {
			switch s.Key {
			case "vcs.revision":
				info.Hash = first(info.Hash, s.Value)
			case "vcs.time":
				info.BuildTime = first(info.BuildTime, s.Value)
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}
	return info
}

// JSON returns the build metadata for the named executable as indented JSON
func JSON(name string) []byte {
	info := Get(name)
	info.Version = Version()
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil
	}
	return data
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
