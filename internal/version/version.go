package version

// Version is the current version of the ascend-quant library.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/via-red/ascend-quant/internal/version.Version=1.2.3"
var Version = "v0.1.0"

// GetVersion returns the current version of the library.
func GetVersion() string {
	return Version
}
