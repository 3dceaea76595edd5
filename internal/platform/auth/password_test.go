package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("hash must not equal the secret")
	}

	ok, err := h.Verify(hash, "s3cret-pass")
	if err != nil || !ok {
		t.Errorf("expected match, ok=%v err=%v", ok, err)
	}

	ok, err = h.Verify(hash, "wrong")
	if err != nil || ok {
		t.Errorf("expected mismatch without error, ok=%v err=%v", ok, err)
	}
}

func TestHasher_EmptyHash(t *testing.T) {
	ok, err := NewHasher(bcrypt.MinCost).Verify("", "1234")
	if err != nil || ok {
		t.Errorf("expected no match for empty hash, ok=%v err=%v", ok, err)
	}
}

func TestHasher_MalformedHash(t *testing.T) {
	_, err := NewHasher(bcrypt.MinCost).Verify("not-a-bcrypt-hash", "1234")
	if err == nil {
		t.Error("expected error for malformed hash")
	}
}

func TestNewHasher_ClampsCost(t *testing.T) {
	if h := NewHasher(99); h.cost != bcrypt.DefaultCost {
		t.Errorf("expected default cost, got %d", h.cost)
	}
}
