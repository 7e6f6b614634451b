// Package version holds build metadata injected via -ldflags.
package version

import "fmt"

// Set at build time:
//
//	go build -ldflags "-X freeway/internal/version.Version=v1.2.3 -X freeway/internal/version.Commit=abc123"
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns a single-line description of the build.
func Info() string {
	return fmt.Sprintf("freeway %s (commit %s, built %s)", Version, Commit, Date)
}
