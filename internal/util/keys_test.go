package util

import "testing"

func TestShortHash(t *testing.T) {
	a := ShortHash([]byte(`{"images":["x"]}`), 16)
	if len(a) != 16 {
		t.Fatalf("len = %d", len(a))
	}
	if a != ShortHash([]byte(`{"images":["x"]}`), 16) {
		t.Fatalf("hash must be deterministic")
	}
	if a == ShortHash([]byte(`{"images":["y"]}`), 16) {
		t.Fatalf("different input, same hash")
	}
	if got := ShortHash(nil, 0); len(got) != 64 {
		t.Fatalf("n<=0 must return the full hash, got %d chars", len(got))
	}
	if got := ShortHash(nil, 100); len(got) != 64 {
		t.Fatalf("n>64 must clamp, got %d chars", len(got))
	}
}

func TestRedactKey(t *testing.T) {
	got := RedactKey("@snap:inventory:user-42")
	want := "@snap:inventory:#" + ShortHash([]byte("user-42"), 12)
	if got != want {
		t.Fatalf("RedactKey = %q, want %q", got, want)
	}
	// ids containing ':' are hashed whole
	if got := RedactKey("@snap:visionData:a:b"); got != "@snap:visionData:#"+ShortHash([]byte("a:b"), 12) {
		t.Fatalf("RedactKey = %q", got)
	}
	if got := RedactKey("plain"); got != "#"+ShortHash([]byte("plain"), 16) {
		t.Fatalf("RedactKey = %q", got)
	}
}
