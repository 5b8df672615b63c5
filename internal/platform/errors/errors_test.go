package errors

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	sentinel := New(CodeProgressInvalidChoice, "choice is not available")
	specific := WithMetadata(CodeProgressInvalidChoice, "choice btn-9 not on node-1", map[string]string{"ChoiceID": "btn-9"})

	if !errors.Is(specific, sentinel) {
		t.Fatal("expected errors.Is to match on code")
	}
	if errors.Is(specific, New(CodeProgressConditionNotMet, "other")) {
		t.Fatal("expected different codes not to match")
	}
}

func TestCodeOfUnwrapsChains(t *testing.T) {
	err := fmt.Errorf("advance: %w", New(CodeConflict, "write lost"))
	if got := CodeOf(err); got != CodeConflict {
		t.Fatalf("CodeOf = %q, want %q", got, CodeConflict)
	}
	if got := CodeOf(errors.New("plain")); got != CodeUnknown {
		t.Fatalf("CodeOf plain = %q, want %q", got, CodeUnknown)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeUnknown, "persist revision", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{code: CodeGraphValidationFailed, want: codes.InvalidArgument},
		{code: CodeRevisionInvalidTransition, want: codes.FailedPrecondition},
		{code: CodeProgressConditionNotMet, want: codes.FailedPrecondition},
		{code: CodeProgressSyncMismatch, want: codes.InvalidArgument},
		{code: CodeComicAuthorMismatch, want: codes.PermissionDenied},
		{code: CodeNotFound, want: codes.NotFound},
		{code: CodeConflict, want: codes.Aborted},
		{code: CodeUnknown, want: codes.Internal},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.GRPCCode(); got != tt.want {
				t.Fatalf("GRPCCode = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToGRPCStatusAttachesDetails(t *testing.T) {
	err := WithMetadata(CodeRevisionInvalidTransition, "draft -> approved", map[string]string{"FromStatus": "draft"})
	st, ok := status.FromError(err.ToGRPCStatus("en-US", "Cannot approve a draft"))
	if !ok {
		t.Fatal("expected grpc status")
	}
	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("code = %v, want FailedPrecondition", st.Code())
	}
	var foundInfo, foundLocalized bool
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			foundInfo = true
			if d.GetReason() != string(CodeRevisionInvalidTransition) {
				t.Fatalf("reason = %q", d.GetReason())
			}
			if d.GetMetadata()["FromStatus"] != "draft" {
				t.Fatalf("metadata = %v", d.GetMetadata())
			}
		case *errdetails.LocalizedMessage:
			foundLocalized = true
			if d.GetMessage() != "Cannot approve a draft" {
				t.Fatalf("localized message = %q", d.GetMessage())
			}
		}
	}
	if !foundInfo || !foundLocalized {
		t.Fatalf("expected both details, info=%v localized=%v", foundInfo, foundLocalized)
	}
}
