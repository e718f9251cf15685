package kafka

import (
	"errors"
	"testing"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("something else"), false},
		{errors.New("dial tcp 127.0.0.1:9092: connection refused"), true},
		{errors.New("Connection Reset by peer"), true},
		{errors.New("Leader Not Available"), true},
		{errors.New("request timed out"), true},
		{errors.New("not enough replicas"), true},
		{errors.New("message too large"), false},
		{errors.New("unknown topic or partition"), false},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.want {
				t.Errorf("IsRetryableError(%q) = %v, want %v", name, got, tt.want)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	if IsConnectionError(errors.New("request timed out")) {
		t.Error("a request timeout is not a connection error")
	}
	if !IsConnectionError(errors.New("i/o timeout")) {
		t.Error("an i/o timeout is a connection error")
	}
}
