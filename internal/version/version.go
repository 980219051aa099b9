// Package version holds build metadata set via ldflags:
//
//	go build -ldflags "-X github.com/dipmndl/cdk-digital-twin-r2ex/internal/version.Version=v1.4.0" ./cmd/r2ex
package version

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the metadata for --version.
func String() string {
	s := Version
	if GitCommit != "unknown" && GitCommit != "" {
		s += " (" + GitCommit + ")"
	}
	if BuildTime != "unknown" && BuildTime != "" {
		s += " built " + BuildTime
	}
	return s
}
