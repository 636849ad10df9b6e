// Package version holds build information, overridable with -ldflags -X.
package version

var (
	Version   = "0.1.0"
	BuildDate = "2026-10-18"
	Service   = "deltaflow"
)

func GetVersion() string {
	return Version
}

func GetBuildDate() string {
	return BuildDate
}

// Info is the payload of version endpoints and the version command.
type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
}

func Get() Info {
	return Info{Service: Service, Version: Version, BuildDate: BuildDate}
}
