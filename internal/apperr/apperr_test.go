package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrap_UnwrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindDecode, cause, "decode pattern")

	if !errors.Is(err, cause) {
		t.Fatal("errors.Is(err, cause) = false, want true")
	}
	if got, want := err.Error(), "decode_error: decode pattern: boom"; got != want {
		t.Fatalf("Error()=%q want %q", got, want)
	}
}

func TestIs_ThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("generate: %w", InvalidLayout("overlap %v >= panel width %v", 5.0, 5.0))

	if !Is(err, KindInvalidLayout) {
		t.Fatal("expected KindInvalidLayout")
	}
	if Is(err, KindDecode) {
		t.Fatal("unexpected KindDecode match")
	}
	if KindOf(err) != KindInvalidLayout {
		t.Fatalf("KindOf=%q", KindOf(err))
	}
}

func TestKindOf_PlainErrorIsInternal(t *testing.T) {
	if k := KindOf(errors.New("disk on fire")); k != KindInternal {
		t.Fatalf("KindOf=%q want internal", k)
	}
}

func TestUserMessage_SanitizesInternal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain", errors.New("open /var/secret: permission denied"), "internal server error"},
		{"internal kind", Wrap(KindInternal, errors.New("x"), "resize failed"), "internal server error"},
		{"no layout", NoLayout(), "No panels generated yet"},
		{"invalid panel", InvalidPanel(0, 3), "Invalid panel number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Fatalf("UserMessage=%q want %q", got, tt.want)
			}
		})
	}
}
