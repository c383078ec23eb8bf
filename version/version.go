package version

// set at build time via -ldflags "-X github.com/updrift/updrift/version.version=..."
var version = "development"

// Version returns the version of the running application.
func Version() string {
	return version
}
