package version

import "fmt"

// These variables are set at build time via -ldflags
// Example: go build -ldflags "-X github.com/pysugar/calendar-notice/internal/version.Version=v0.2.0"
var (
	Version = "dev"

	// Commit is the git commit hash
	Commit = "none"

	BuildTime = "unknown"
)

// String formats the build metadata for -version and the startup log.
func String() string {
	return fmt.Sprintf("calnotice %s (commit %s, built %s)", Version, Commit, BuildTime)
}
