// Package version exposes the agent build version, injected at link time
// via -ldflags "-X genflow-agent/internal/version.version=...".
package version

import "genflow-agent/pkg/semver"

var version = "0.0.0"

// GetVersion returns the agent version string.
func GetVersion() string {
	return version
}

// GetNumericVersion returns the version as a single sortable integer.
func GetNumericVersion() int {
	return semver.GetNumericVersion(version)
}

// IsSmallerThan reports whether the running agent is older than semVer.
func IsSmallerThan(semVer string) bool {
	return semver.Compare(version, semVer) < 0
}
