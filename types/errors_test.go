package types

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClaimError_Predicates(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		err     error
		code    string
		checkFn func(error) bool
	}{
		{
			name:    "authorization error",
			err:     NewAuthorizationError([]byte{0x01}, 2),
			code:    ErrorCodeClaimAuthorization,
			checkFn: IsAuthorizationError,
		},
		{
			name:    "ownership error",
			err:     NewOwnershipError([]byte{0x02}, 7),
			code:    ErrorCodeClaimOwnership,
			checkFn: IsOwnershipError,
		},
		{
			name:    "not found error",
			err:     NewNotFoundError(7),
			code:    ErrorCodeClaimNotFound,
			checkFn: IsNotFound,
		},
		{
			name:    "not started error",
			err:     NewNotStartedError(7, now.Add(time.Hour), now),
			code:    ErrorCodeClaimNotStarted,
			checkFn: IsNotStarted,
		},
		{
			name:    "expired error",
			err:     NewExpiredError(7, now.Add(-time.Hour), now),
			code:    ErrorCodeClaimExpired,
			checkFn: IsExpired,
		},
		{
			name:    "transfer execution error",
			err:     NewTransferExecutionError(7, errors.New("insufficient allowance")),
			code:    ErrorCodeClaimTransferExecution,
			checkFn: IsTransferExecutionError,
		},
		{
			name:    "validation error",
			err:     NewValidationError("batch is empty"),
			code:    ErrorCodeClaimValidation,
			checkFn: IsValidationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce, ok := IsClaimError(tt.err)
			if !ok {
				t.Fatal("IsClaimError() = false, want true")
			}
			if ce.Code != tt.code {
				t.Errorf("Code = %s, want %s", ce.Code, tt.code)
			}
			if ce.Layer != LayerClaimEngineGo {
				t.Errorf("Layer = %s, want %s", ce.Layer, LayerClaimEngineGo)
			}
			if ce.TraceID == "" {
				t.Error("TraceID is empty")
			}
			if !tt.checkFn(tt.err) {
				t.Error("predicate returned false for its own error")
			}
		})
	}
}

func TestClaimError_PredicatesRejectOtherCodes(t *testing.T) {
	err := NewNotFoundError(1)
	if IsExpired(err) {
		t.Error("IsExpired() matched a not-found error")
	}
	if IsOwnershipError(err) {
		t.Error("IsOwnershipError() matched a not-found error")
	}
	if IsNotFound(errors.New("plain error")) {
		t.Error("IsNotFound() matched a plain error")
	}
	if IsNotFound(nil) {
		t.Error("IsNotFound(nil) = true")
	}
}

func TestClaimError_Unwrap(t *testing.T) {
	cause := errors.New("ledger rejected")
	err := NewTransferExecutionError(3, cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is() did not find the wrapped cause")
	}

	// 经过 fmt.Errorf 包装后 errors.As 仍能识别
	wrapped := fmt.Errorf("claim failed: %w", err)
	if !IsTransferExecutionError(wrapped) {
		t.Error("IsTransferExecutionError() failed on a wrapped error")
	}
}

func TestClaimError_ToProblemDetails(t *testing.T) {
	err := NewOwnershipError([]byte{0xAB, 0xCD}, 9)
	pd := err.ToProblemDetails()

	if pd.Code != ErrorCodeClaimOwnership {
		t.Errorf("Code = %s, want %s", pd.Code, ErrorCodeClaimOwnership)
	}
	if pd.Layer != LayerClaimEngineGo {
		t.Errorf("Layer = %s, want %s", pd.Layer, LayerClaimEngineGo)
	}
	if pd.TraceID != err.TraceID {
		t.Error("TraceID not carried over")
	}
	if pd.Details["claimId"] != uint64(9) {
		t.Errorf("Details[claimId] = %v, want 9", pd.Details["claimId"])
	}
}

func TestClaimError_ErrorString(t *testing.T) {
	err := NewNotFoundError(5)
	msg := err.Error()
	if msg == "" {
		t.Fatal("Error() is empty")
	}
	// 错误串携带错误码，方便日志排查
	if want := "[" + ErrorCodeClaimNotFound + "]"; len(msg) < len(want) || msg[:len(want)] != want {
		t.Errorf("Error() = %q, want prefix %q", msg, want)
	}
}
