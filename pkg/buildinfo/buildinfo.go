// Package buildinfo exposes version metadata stamped at build time.
package buildinfo

import "runtime"

// These vars are set at build time via ldflags:
// -X github.com/ismaeeldev/nexa-server/pkg/buildinfo.Version=v0.3.0
// -X github.com/ismaeeldev/nexa-server/pkg/buildinfo.Commit=4f2a91c
// -X github.com/ismaeeldev/nexa-server/pkg/buildinfo.BuildTime=2026-08-30T12:00:00Z
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info holds build information for the server.
type Info struct {
	ServiceName string `json:"service_name"`
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	BuildTime   string `json:"build_time"`
	GoVersion   string `json:"go_version"`
}

// Get returns build info for the named service.
func Get(serviceName string) Info {
	return Info{
		ServiceName: serviceName,
		Version:     Version,
		Commit:      Commit,
		BuildTime:   BuildTime,
		GoVersion:   runtime.Version(),
	}
}

// String returns a one-liner like "v0.3.0 (4f2a91c, 2026-08-30T12:00:00Z)".
func String() string {
	return Version + " (" + Commit + ", " + BuildTime + ")"
}
