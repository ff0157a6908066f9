package app

import "runtime/debug"

// version is set at build time with
// -ldflags "-X github.com/driverfleet/driverfleet/pkg/app.version=v1.2.3".
var version = ""

// Version returns the build version, falling back to the module version recorded by the Go
// toolchain.
func Version() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
