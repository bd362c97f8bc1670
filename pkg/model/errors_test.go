package model

import "testing"

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Code: ErrNotFound, Message: "job '7' not found"}
	want := "NOT_FOUND: job '7' not found"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("job", int64(42))
	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Message != "job '42' not found" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("invalid job",
		FieldError{Field: "name", Message: "required"},
		FieldError{Field: "execution_time", Message: "must be >= 0"},
	)
	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if len(err.Details) != 2 {
		t.Errorf("Details = %d, want 2", len(err.Details))
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{ID: 3, From: StatusCompleted, To: StatusRunning}
	want := "invalid job status transition: COMPLETED → RUNNING (job 3)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
