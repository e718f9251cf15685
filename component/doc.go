// Package component manages the lifecycle of the service's moving parts.
//
// Components start in registration order, stop in reverse order and report
// their health to the /health endpoint.
package component
