// Package resilience retries transient failures with exponential backoff.
// The sidecar loader retries model loads while the sidecar is starting and
// the Kafka producer retries writes a broker rejected temporarily.
package resilience
