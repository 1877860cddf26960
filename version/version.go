// Package version holds build metadata injected at link time.
package version

import "runtime"

// Set via -ldflags "-X github.com/kyamashita/honyaku/version.GitRelease=..."
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
)

// GoInfo reports the Go toolchain the binary was built with.
var GoInfo = runtime.Version()
