// Package logger provides structured logging for the worker using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers carrying structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("worker")
//	log.Info("job finished", logger.Fields(logger.FieldJobID, id))
package logger
