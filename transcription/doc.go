// Package transcription defines the contract between the worker and a
// speech-to-text backend: a Loader builds a Model for an (engine, model)
// pair, and Model.Transcribe returns either Materialized segments or a
// Streamed iterator of segments.
//
// # Backends
//
//   - transcription/sidecar: HTTP inference sidecar serving both engines
package transcription
