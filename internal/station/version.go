package station

import "fmt"

// Version information, set by build flags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// ShowVersion prints the station's banner and build metadata.
func ShowVersion() {
	fmt.Printf("gammarf station kernel\n")
	fmt.Printf("Version: %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
