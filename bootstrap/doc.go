// Package bootstrap runs a service through its lifecycle: start components,
// configure, ready check, wait for a signal, stop in reverse order.
package bootstrap
