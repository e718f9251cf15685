package validation

import (
	"testing"

	"github.com/kbukum/whisperjob/errors"
)

type sample struct {
	Engine string         `json:"engine" validate:"oneof=faster-whisper stable-whisper"`
	Model  string         `json:"model" validate:"required"`
	Args   map[string]any `json:"args" validate:"anykey=blob url"`
}

func TestCheckValid(t *testing.T) {
	s := sample{Engine: "faster-whisper", Model: "m", Args: map[string]any{"url": "http://x/a.wav"}}
	if errs := Check(s); errs != nil {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestCheckAllFieldsInOrder(t *testing.T) {
	errs := Check(sample{Engine: "vosk", Args: map[string]any{"language": "he"}})
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}
	want := []struct{ field, tag string }{
		{"engine", "oneof"},
		{"model", "required"},
		{"args", "anykey"},
	}
	for i, w := range want {
		if errs[i].Field != w.field || errs[i].Tag != w.tag {
			t.Errorf("error %d: expected %s/%s, got %s/%s", i, w.field, w.tag, errs[i].Field, errs[i].Tag)
		}
	}
	if errs[0].Value != "vosk" {
		t.Errorf("expected offending value, got %v", errs[0].Value)
	}
}

func TestAnyKeyNilMap(t *testing.T) {
	errs := Check(sample{Engine: "stable-whisper", Model: "m"})
	if len(errs) != 1 || errs[0].Tag != "anykey" {
		t.Errorf("expected single anykey error, got %v", errs)
	}
}

func TestAnyKeyBlobOnly(t *testing.T) {
	s := sample{Engine: "stable-whisper", Model: "m", Args: map[string]any{"blob": ""}}
	if errs := Check(s); errs != nil {
		t.Errorf("blob key alone should satisfy anykey, got %v", errs)
	}
}

func TestValidateFoldsErrors(t *testing.T) {
	err := Validate(sample{Engine: "faster-whisper"})
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", appErr.Code)
	}
	if _, ok := appErr.Details["fields"]; !ok {
		t.Error("expected fields detail")
	}
}

func TestValidateUUID(t *testing.T) {
	if _, err := ValidateUUID("id", "3f1c6f8e-8a43-4d8f-9d5b-6f1f0d6b9c11"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ValidateUUID("id", ""); err == nil {
		t.Error("expected error for empty id")
	}
	if _, err := ValidateUUID("id", "nope"); err == nil {
		t.Error("expected error for malformed id")
	}
}

func TestToSnakeCase(t *testing.T) {
	if got := toSnakeCase("MaxMessageSize"); got != "max_message_size" {
		t.Errorf("unexpected %q", got)
	}
}
