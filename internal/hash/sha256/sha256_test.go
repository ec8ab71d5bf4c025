package sha256

import "testing"

// TestHasherHashDeterministic ensures repeated hashing yields the same digest.
func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte("hello world"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if short := h.Short([]byte("hello world"), 16); short != want[:16] {
		t.Fatalf("expected short digest %s, got %s", want[:16], short)
	}
	if full := h.Short([]byte("hello world"), 0); full != want {
		t.Fatalf("expected full digest, got %s", full)
	}
}
