package version

import "fmt"

// Set at build time with -ldflags "-X".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func Full() string {
	return fmt.Sprintf("handbooth %s, commit %s, built at %s", Version, Commit, Date)
}
