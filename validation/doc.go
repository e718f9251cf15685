// Package validation wraps go-playground/validator with json field names and
// the AppError type.
//
//	type request struct {
//	    Engine string         `json:"engine" validate:"oneof=faster-whisper stable-whisper"`
//	    Args   map[string]any `json:"args" validate:"anykey=blob url"`
//	}
//	for _, fe := range validation.Check(req) { ... }
package validation
