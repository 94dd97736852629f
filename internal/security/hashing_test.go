package security

import "testing"

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(4) // min cost to keep the test fast
	hash, err := h.Hash([]byte("Passw0rd!"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" || hash == "Passw0rd!" {
		t.Fatal("hash empty or equal to plaintext")
	}
	if !h.Verify(hash, []byte("Passw0rd!")) {
		t.Error("Verify with correct password should succeed")
	}
	if h.Verify(hash, []byte("wrong-password")) {
		t.Error("Verify with wrong password should fail")
	}
}

func TestHasher_VerifyMalformedHashFailsClosed(t *testing.T) {
	h := NewHasher(4)
	for _, malformed := range []string{"", "not-a-bcrypt-hash", "$2a$xx$truncated"} {
		if h.Verify(malformed, []byte("anything")) {
			t.Errorf("Verify with malformed hash %q should fail closed", malformed)
		}
	}
}

func TestNewHasher_CostClamped(t *testing.T) {
	if c := NewHasher(0).Cost; c < 4 || c > 31 {
		t.Errorf("cost for 0 = %d, want in [4,31]", c)
	}
	if c := NewHasher(99).Cost; c > 31 {
		t.Errorf("cost for 99 = %d, want <= 31", c)
	}
	if c := NewHasher(1).Cost; c < 4 {
		t.Errorf("cost for 1 = %d, want >= 4", c)
	}
}
