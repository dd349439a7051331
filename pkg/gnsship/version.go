package gnsship

import "github.com/bft-labs/gnsship/pkg/log"

// Version information for the gnsship module.
const (
	// Version is the current version of the gnsship module.
	Version = "1.0.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "1.0.0"
)

// ModuleVersions returns the current versions of all sub-modules.
func ModuleVersions() map[string]string {
	return map[string]string{
		"gnsship": Version,
		"log":     log.Version,
	}
}

// CompatibilityMatrix returns the minimum compatible version for each
// sub-module.
func CompatibilityMatrix() map[string]string {
	return map[string]string{
		"gnsship": MinCompatibleVersion,
		"log":     log.MinCompatibleVersion,
	}
}
