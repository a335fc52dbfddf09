// Package version carries build metadata set with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// UserAgent identifies the relay to the realtime service.
func UserAgent() string {
	return "vr-go/" + Version
}

func GetVersionInfo() string {
	return fmt.Sprintf("vr-go version %s (commit: %s, built: %s, go: %s)",
		Version, GitCommit, BuildTime, runtime.Version())
}
