package keystore

import (
	"crypto/ed25519"
	"testing"
)

func TestGenerateAndOpenRoundTrip(t *testing.T) {
	ks, f, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(ks.Private) == 0 || len(ks.Public) == 0 {
		t.Fatalf("expected non-empty key material")
	}

	reopened, err := Open(f)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !reopened.Private.Equal(ks.Private) {
		t.Fatalf("private key mismatch after round trip")
	}

	msg := []byte("hello")
	sig := reopened.Sign(msg)
	if !ks.Public.Equal(reopened.Public) {
		t.Fatalf("public key mismatch")
	}
	if !ed25519.Verify(ks.Public, msg, sig) {
		t.Fatalf("signature failed to verify")
	}
}

func TestOpenWrongSaltFails(t *testing.T) {
	_, f, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	f.Salt = "00112233445566778899aabbccddeeff00112233445566778899aabbccddee"

	_, err = Open(f)
	if err != ErrLocked {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}
