package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOfWalksChain(t *testing.T) {
	base := New(CodeInvalidArgument, "step weight must be positive", nil)
	wrapped := fmt.Errorf("build plan: %w", base)

	if got := CodeOf(wrapped); got != CodeInvalidArgument {
		t.Fatalf("expected %q, got %q", CodeInvalidArgument, got)
	}
	if !IsCode(wrapped, CodeInvalidArgument) {
		t.Fatal("expected IsCode to match wrapped error")
	}
	if IsCode(wrapped, CodePlanInvalid) {
		t.Fatal("did not expect plan_invalid to match")
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != CodeUnknown {
		t.Fatalf("expected unknown, got %q", got)
	}
	if got := CodeOf(nil); got != CodeUnknown {
		t.Fatalf("expected unknown for nil, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("disk full")
	cases := []struct {
		err  Error
		want string
	}{
		{New(CodeStepFailed, "load db", cause), "load db: disk full"},
		{New(CodeStepFailed, "load db", nil), "load db"},
		{New(CodeStepFailed, "", cause), "disk full"},
		{New(CodeStepFailed, "", nil), "step_failed"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
	if !errors.Is(New(CodeStepFailed, "x", cause), cause) {
		t.Fatal("expected Unwrap to expose cause")
	}
}
