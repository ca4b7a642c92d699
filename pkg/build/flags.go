// SPDX-License-Identifier: MIT
package build

// Build metadata populated via -ldflags at compile time, e.g.:
//
//	go build -ldflags "-X lumen/pkg/build.version=0.2.0"
//
// Development builds fall back to the defaults below.
var (
	name        = "lumen"
	description = "Audio-reactive analysis engine for real-time visuals"
	version     = "dev"
	commit      = "unknown"
)

// Info holds the resolved build metadata.
type Info struct {
	Name        string
	Description string
	Version     string
	Commit      string
}

// GetInfo returns the build metadata for this binary.
func GetInfo() Info {
	return Info{
		Name:        name,
		Description: description,
		Version:     version,
		Commit:      commit,
	}
}
