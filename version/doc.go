// Package version reports the build version shown by /health and in the
// startup log.
package version
