package telegram

import (
	"errors"
	"strings"
	"testing"
)

func TestCallbackEncodeParse(t *testing.T) {
	cases := []Callback{
		{Action: ActionAnswer, Handle: "1a", QuestionID: "q7", Key: "B"},
		{Action: ActionAnswer, Handle: "2", QuestionID: "q1", Key: "x:y"},
		{Action: ActionNext, Handle: "zz"},
		{Action: ActionRegister, Handle: "3"},
		{Action: ActionRecover, Handle: "4"},
	}
	for _, want := range cases {
		data, err := want.Encode()
		if err != nil {
			t.Fatalf("encode %+v: %v", want, err)
		}
		got, err := ParseCallback(data)
		if err != nil {
			t.Fatalf("parse %q: %v", data, err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: want %+v, got %+v", want, got)
		}
	}

	data, _ := Callback{Action: ActionAnswer, Handle: "1a", QuestionID: "q7", Key: "B"}.Encode()
	if data != "a:1a:q7:B" {
		t.Fatalf("unexpected wire form %q", data)
	}
}

func TestParseCallbackRejectsMalformed(t *testing.T) {
	for _, data := range []string{"", "a", "a:", "a:1", "a:1:q1", "a:1::B", "n:1:extra", "x:1", ":1"} {
		if _, err := ParseCallback(data); !errors.Is(err, errMalformedCallback) {
			t.Fatalf("%q: expected malformed error, got %v", data, err)
		}
	}
}

func TestCallbackEncodeLimits(t *testing.T) {
	long := Callback{Action: ActionAnswer, Handle: "1", QuestionID: strings.Repeat("q", 70), Key: "A"}
	if _, err := long.Encode(); !errors.Is(err, errCallbackTooLong) {
		t.Fatalf("expected too long error, got %v", err)
	}
	if _, err := (Callback{Action: ActionNext, Handle: "a:b"}).Encode(); !errors.Is(err, errMalformedCallback) {
		t.Fatalf("expected handle with separator to be rejected, got %v", err)
	}
	if _, err := (Callback{Action: ActionAnswer, Handle: "1"}).Encode(); !errors.Is(err, errMalformedCallback) {
		t.Fatalf("expected answer without question to be rejected, got %v", err)
	}
}

func TestHandlesAliasResolveForget(t *testing.T) {
	h := NewHandles()
	id := "3f2b1c9e-8d7a-4e6f-9b0c-1a2b3c4d5e6f"

	a := h.Alias(id)
	if a == "" || len(a) > 8 {
		t.Fatalf("expected a short alias, got %q", a)
	}
	if again := h.Alias(id); again != a {
		t.Fatalf("alias must be stable, got %q then %q", a, again)
	}
	if other := h.Alias("another"); other == a {
		t.Fatalf("distinct sessions must get distinct aliases")
	}
	if got, ok := h.Resolve(a); !ok || got != id {
		t.Fatalf("resolve: got %q %v", got, ok)
	}

	h.Forget(id)
	if _, ok := h.Resolve(a); ok {
		t.Fatalf("expected forgotten alias to stop resolving")
	}
}
