// Package version holds build-time metadata, set via linker flags
// (-ldflags "-X github.com/kelora-go/kelora/version.Version=... -X
// ...version.Date=..."), following the teacher's cli.App.Version /
// cli.App.Compiled wiring in cli/cli.go even though the teacher's own
// version package was not part of the retrieved source tree.
package version

// Version is the release tag this binary was built from, overridden by
// the release pipeline. "dev" for local builds.
var Version = "dev"

// Date is the build timestamp in RFC3339, overridden by the release
// pipeline. Left empty for local builds; cli falls back to time.Now().
var Date = ""
