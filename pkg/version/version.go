// Package version derives the application version from build metadata:
// the VCS revision the Go toolchain embeds, or "dev" when built outside a
// git checkout (go test, source archives).
package version

import "runtime/debug"

// AppName is the application name used in version strings and health reports.
const AppName = "maintflow"

// GitCommit is the short commit hash (8 chars) from build info, or "dev".
var GitCommit = initGitCommit()

func initGitCommit() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 8 {
			return s.Value[:8]
		}
	}
	return "dev"
}

// Full returns "maintflow/<commit>" for logging and health output.
func Full() string {
	return AppName + "/" + GitCommit
}
