// Package version holds the binary's identity, printed by --version and
// included in subprocess-failure diagnostics.
package version

const (
	BinaryName = "releaseforge"
	Version    = "0.1.0"
)
