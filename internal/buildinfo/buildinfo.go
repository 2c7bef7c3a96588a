// Package buildinfo holds build-time metadata injected via -ldflags.
package buildinfo

// Version is the semantic version or tag for this build.
// Inject via: -X github.com/garyellow/goose-bot/internal/buildinfo.Version=...
var Version = ""

// Commit is the git commit SHA for this build.
// Inject via: -X github.com/garyellow/goose-bot/internal/buildinfo.Commit=...
var Commit = ""

// Release returns the identifier reported to error tracking.
// Falls back to the commit, then "dev" for local builds.
func Release() string {
	switch {
	case Version != "":
		return "goose-bot@" + Version
	case Commit != "":
		return "goose-bot@" + Commit
	default:
		return "goose-bot@dev"
	}
}
