// Package version holds the build version for endnote-mcp.
package version

// Version is the current release version.
// Overridden at build time via -ldflags "-X .../pkg/version.Version=vX.Y.Z".
var Version = "0.3.0-dev"
