package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("tool failed: %w", New(CodePlayerNotFound, "player p1 has no character"))

	if !stderrors.Is(err, New(CodePlayerNotFound, "")) {
		t.Fatal("expected code match through wrap")
	}
	if stderrors.Is(err, New(CodeUnknownMonster, "")) {
		t.Fatal("did not expect match for a different code")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodePersistenceFailed, "save campaign", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if err.Error() != "save campaign: disk full" {
		t.Fatalf("Error() = %q, want %q", err.Error(), "save campaign: disk full")
	}
	if got := Wrap(CodePersistenceFailed, "", cause).Error(); got != "disk full" {
		t.Fatalf("Error() = %q, want %q", got, "disk full")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "domain", err: New(CodeUnknownClass, "x"), want: CodeUnknownClass},
		{name: "wrapped", err: fmt.Errorf("a: %w", New(CodeRateLimited, "x")), want: CodeRateLimited},
		{name: "plain", err: stderrors.New("boom"), want: CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Fatalf("CodeOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBagIncludesMetadata(t *testing.T) {
	err := WithMetadata(CodeUnknownMonster, "unknown monster: dragon", map[string]string{"valid": "goblin, orc"})

	bag := Bag(err)
	if bag["code"] != "UNKNOWN_MONSTER" {
		t.Fatalf("code = %v, want UNKNOWN_MONSTER", bag["code"])
	}
	if bag["error"] != "unknown monster: dragon" {
		t.Fatalf("error = %v", bag["error"])
	}
	if bag["valid"] != "goblin, orc" {
		t.Fatalf("valid = %v", bag["valid"])
	}
	if Bag(nil) != nil {
		t.Fatal("expected nil bag for nil error")
	}
}

func TestRecoverable(t *testing.T) {
	if !CodePlayerNotFound.Recoverable() {
		t.Fatal("expected player not found to be recoverable")
	}
	if CodePersistenceFailed.Recoverable() {
		t.Fatal("expected persistence failure to abort the turn")
	}
}
