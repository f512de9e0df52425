// Package version exposes build metadata for the UTOPAI binaries.
// The values are substituted via -ldflags at build time.
package version

var (
	// Version is the release version (git tag or "dev")
	Version = "dev"
	// Commit is the git commit hash
	Commit = "dev"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)
