// Package version records build metadata, stamped in at build time via
// -ldflags "-X".
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release version.
	Version = "dev"
	// GitCommit is the commit the binary was built from.
	GitCommit = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// Print writes the version banner for the named binary to stdout.
func Print(name string) {
	fmt.Printf("%s version %s (commit %s, built %s, %s)\n",
		name, Version, GitCommit, BuildTime, runtime.Version())
}
