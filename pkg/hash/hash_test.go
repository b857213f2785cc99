package hash

import (
	"strings"
	"testing"
)

func TestSumIsDeterministic(t *testing.T) {
	a := Sum([]byte("lakehouse-42"))
	b := Sum([]byte("lakehouse-42"))
	if a != b {
		t.Fatalf("same input hashed differently: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %d (%s)", len(a), a)
	}
	if a == Sum([]byte("lakehouse-43")) {
		t.Fatal("distinct inputs collided")
	}
}

func TestSignatureFieldBoundaries(t *testing.T) {
	// "a","b" and "ab","" must not hash the same; the separator keeps field
	// positions distinct.
	if Signature("a", "b") == Signature("ab", "") {
		t.Fatal("field boundary lost in signature")
	}
	if Signature("a", "", "c") == Signature("a", "c") {
		t.Fatal("empty field dropped from signature")
	}
}

func TestSignatureLowercaseHex(t *testing.T) {
	s := Signature("snowflake", "ANALYTICS", "PUBLIC", "ORDERS")
	if s != strings.ToLower(s) {
		t.Fatalf("expected lowercase hex, got %s", s)
	}
}
