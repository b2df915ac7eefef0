// Package version holds the single build identifier shared by the HTTP
// API's /api/version endpoint and the R2 backup metadata written on every
// nightly upload.
package version

// Version is overridden at link time in release builds via
// -ldflags "-X github.com/aristath/sentinel/internal/version.Version=...".
var Version = "dev"
