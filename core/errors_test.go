package core

import (
	"context"
	"testing"

	"github.com/pkg/errors"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "plain", err: errors.New("boom"), want: KindUnknown},
		{name: "validation", err: NewValidationError(errors.New("bad")), want: KindValidation},
		{name: "wrapped validation", err: errors.Wrap(NewValidationError(errors.New("bad")), "validating"), want: KindValidation},
		{name: "not found", err: NewNotFoundError("credential"), want: KindNotFound},
		{name: "network", err: NewNetworkError(errors.New("dial tcp"), false), want: KindNetwork},
		{name: "timeout", err: errors.Wrap(NewNetworkError(context.DeadlineExceeded, true), "probing"), want: KindTimeout},
		{name: "server", err: NewServerError("rejected", 500), want: KindServer},
		{name: "storage", err: NewStorageError("saving vault", errors.New("disk full")), want: KindStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	err := errors.Wrap(NewNetworkError(context.DeadlineExceeded, true), "probing")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("errors.Is(%v, context.DeadlineExceeded) = false, want true", err)
	}
}

func TestNewResult(t *testing.T) {
	res := NewResult(map[string]string{"a": "b"}, nil)
	if !res.Success || res.Data == nil || res.Message != "" {
		t.Errorf("NewResult(data, nil) = %+v", res)
	}

	res = NewResult(nil, NewValidationError(errors.New("invalid"), FieldError{Field: "username", Error: "required"}))
	if res.Success {
		t.Errorf("NewResult(nil, err).Success = true, want false")
	}
	if res.Kind != "validation" || res.Message != "invalid" || len(res.Fields) != 1 {
		t.Errorf("NewResult(nil, err) = %+v", res)
	}
}

func TestIsShutdown(t *testing.T) {
	if !IsShutdown(errors.Wrap(NewShutdownError("bye"), "serving")) {
		t.Error("IsShutdown() = false, want true")
	}
	if IsShutdown(errors.New("bye")) {
		t.Error("IsShutdown() = true, want false")
	}
}
