package errors

import (
	"fmt"
	"testing"
)

func TestForgeError_Error(t *testing.T) {
	err := &ForgeError{
		Code:    ErrSaveNotFound,
		Status:  404,
		Message: "save not found: abc",
	}

	expected := "SAVE_NOT_FOUND: save not found: abc"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewSaveNotFound(t *testing.T) {
	err := NewSaveNotFound("01HX")

	if err.Code != ErrSaveNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrSaveNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["id"] != "01HX" {
		t.Errorf("Details[id] = %v, want %q", err.Details["id"], "01HX")
	}
}

func TestNewInvalidTransition(t *testing.T) {
	err := NewInvalidTransition("submit_turn", "GameOver")

	if err.Code != ErrInvalidTransition {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidTransition)
	}
	if err.Status != 409 {
		t.Errorf("Status = %d, want 409", err.Status)
	}
	if err.Details["phase"] != "GameOver" {
		t.Errorf("Details[phase] = %v, want GameOver", err.Details["phase"])
	}
}

func TestNewStorageCorrupted(t *testing.T) {
	err := NewStorageCorrupted("saves:quarantine:1", fmt.Errorf("bad json"))
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
	if err.Details["quarantine_key"] != "saves:quarantine:1" {
		t.Errorf("Details[quarantine_key] = %v", err.Details["quarantine_key"])
	}
	if err.Details["cause"] != "bad json" {
		t.Errorf("Details[cause] = %v", err.Details["cause"])
	}

	noKey := NewStorageCorrupted("", nil)
	if _, ok := noKey.Details["quarantine_key"]; ok {
		t.Error("expected no quarantine_key detail")
	}
	if noKey.Message != "saved games were unreadable" {
		t.Errorf("Message = %q", noKey.Message)
	}
}

func TestNewGenerationFailure(t *testing.T) {
	err := NewGenerationFailure("turn", fmt.Errorf("timeout"))
	if err.Status != 502 {
		t.Errorf("Status = %d, want 502", err.Status)
	}
	if err.Message != "turn failed: timeout" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewInternal(t *testing.T) {
	if got := NewInternal(nil).Message; got != "internal error" {
		t.Errorf("Message = %q, want %q", got, "internal error")
	}
	if got := NewInternal(fmt.Errorf("boom")).Message; got != "boom" {
		t.Errorf("Message = %q, want %q", got, "boom")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewTurnInFlight(), ErrTurnInFlight, true},
		{"different code", NewTurnInFlight(), ErrNothingToUndo, false},
		{"wrapped", fmt.Errorf("ctx: %w", NewNothingToUndo()), ErrNothingToUndo, true},
		{"plain error", fmt.Errorf("plain"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAs(t *testing.T) {
	if As(nil) != nil {
		t.Error("As(nil) should be nil")
	}
	fe := NewStaleResponse(3, 2)
	if As(fe) != fe {
		t.Error("As should return the same ForgeError")
	}
	if got := As(fmt.Errorf("x")); got.Code != ErrInternal {
		t.Errorf("As(plain).Code = %q, want INTERNAL", got.Code)
	}
}
