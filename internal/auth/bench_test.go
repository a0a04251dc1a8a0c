package auth

import "testing"

// ─── Password hashing (Argon2id, intentionally slow) ─────────────────

func BenchmarkHasher_Hash(b *testing.B) {
	h, err := NewHasher([]byte("0123456789abcdef"))
	if err != nil {
		b.Fatalf("NewHasher: %v", err)
	}

	for b.Loop() {
		h.Hash("correct-horse-battery-staple")
	}
}

func BenchmarkHasher_Verify(b *testing.B) {
	h, err := NewHasher([]byte("0123456789abcdef"))
	if err != nil {
		b.Fatalf("NewHasher: %v", err)
	}
	hash := h.Hash("correct-horse-battery-staple")

	for b.Loop() {
		h.Verify("correct-horse-battery-staple", hash) //nolint:errcheck // benchmark
	}
}

// ─── Tokens (per-request hot path) ──────────────────────────────────

func BenchmarkTokenService_Issue(b *testing.B) {
	svc := NewTokenService("benchmark-secret-key-32-bytes-xx", 0)

	for b.Loop() {
		svc.Issue(1, RoleAdmin, "bench@example.com") //nolint:errcheck // benchmark
	}
}

func BenchmarkGuard_Authorize(b *testing.B) {
	svc := NewTokenService("benchmark-secret-key-32-bytes-xx", 0)
	guard := NewGuard(svc)

	token, err := svc.Issue(1, RoleAdmin, "bench@example.com")
	if err != nil {
		b.Fatalf("Issue: %v", err)
	}
	header := BearerPrefix + token

	for b.Loop() {
		guard.Authorize(RoleAdmin, header) //nolint:errcheck // benchmark
	}
}
