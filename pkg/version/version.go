package version

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var (
	// Build information - these will be set via ldflags during build
	Version   = "dev"
	Commit    = "unknown"
	Date      = "unknown"
	BuiltBy   = "unknown"
	GoVersion = runtime.Version()
)

// ProductName prefixes the client identity sent to the server.
const ProductName = "tradechat"

// devVersion is reported for builds without a semver tag.
const devVersion = "0.0.0-dev"

// Info holds version information
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	BuiltBy   string `json:"built_by"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo returns version information
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		BuiltBy:   BuiltBy,
		GoVersion: GoVersion,
		Platform:  platform(),
	}
}

// GetVersion returns just the version string
func GetVersion() string {
	return Version
}

// Normalize turns a build version such as "v1.4" or "1.4.0-rc.1" into a
// canonical semver string. Anything unparseable is reported as 0.0.0-dev.
func Normalize(raw string) string {
	v, err := semver.NewVersion(strings.TrimSpace(raw))
	if err != nil {
		return devVersion
	}
	return v.String()
}

// ClientInfo identifies this client to the server, for example
// "tradechat/1.2.0 (linux/amd64)". It is also used as the User-Agent.
func ClientInfo() string {
	return fmt.Sprintf("%s/%s (%s)", ProductName, Normalize(Version), platform())
}

func platform() string {
	return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
}

// String returns a formatted version string
func (i Info) String() string {
	return fmt.Sprintf("tradechat version %s\ncommit: %s\nbuilt: %s\nby: %s\ngo: %s\nplatform: %s",
		i.Version, i.Commit, i.Date, i.BuiltBy, i.GoVersion, i.Platform)
}

// ShortString returns a short version string
func (i Info) ShortString() string {
	return fmt.Sprintf("tradechat version %s", i.Version)
}
