package observability

// Set with -ldflags "-X network-monitor/internal/infrastructure/observability.Version=..."
var (
	Version = "dev"
	Commit  = "none"
	Date    = ""
)

// Build describes the running binary.
type Build struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date,omitempty"`
}

// BuildInfo returns the linked-in build metadata.
func BuildInfo() Build {
	return Build{Name: "network-monitor", Version: Version, Commit: Commit, Date: Date}
}

// String renders the version as shown by the CLI.
func (b Build) String() string {
	if b.Commit == "" || b.Commit == "none" {
		return b.Version
	}
	return b.Version + " (" + b.Commit + ")"
}
