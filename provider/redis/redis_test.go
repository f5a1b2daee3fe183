package redis

import "testing"

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); err != ErrNilClient {
		t.Fatalf("expected ErrNilClient, got %v", err)
	}
}

func TestGlobEscape(t *testing.T) {
	cases := map[string]string{
		"@snap:":      "@snap:",
		"a*b":         `a\*b`,
		"q?[x]":       `q\?\[x\]`,
		`back\slash:`: `back\\slash:`,
	}
	for in, want := range cases {
		if got := globEscape(in); got != want {
			t.Fatalf("globEscape(%q) = %q, want %q", in, got, want)
		}
	}
}
