// Package errors provides the structured error type used across the worker.
// Every error carries a machine-readable code, an HTTP status mapping and a
// retryable flag; validation errors additionally carry the exact message that
// is delivered to job callers.
package errors
