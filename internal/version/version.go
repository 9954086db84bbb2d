// Package version records the tool version stamped into generated files.
package version

// Version is the tracegen release version. Release builds override it at
// link time.
var Version = "0.2.0-dev"
