package chain

import (
	"crypto/ed25519"
	"encoding/json"
	"testing"
)

func TestComputeHashDeterministic(t *testing.T) {
	data := json.RawMessage(`{"a":1}`)
	h1, err := ComputeHash("id1", TypeSessionStart, "sess1", "2026-01-01T00:00:00Z", data, Genesis)
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}
	h2, err := ComputeHash("id1", TypeSessionStart, "sess1", "2026-01-01T00:00:00Z", data, Genesis)
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected deterministic hash, got %q vs %q", h1, h2)
	}

	h3, err := ComputeHash("id1", TypeSessionStart, "sess1", "2026-01-01T00:00:00Z", json.RawMessage(`{"a":2}`), Genesis)
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}
	if h3 == h1 {
		t.Fatalf("expected different hash for changed data")
	}

	h4, err := ComputeHash("id1", TypeSessionStart, "sess1", "2026-01-01T00:00:00Z", data, "otherprev")
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}
	if h4 == h1 {
		t.Fatalf("expected different hash for changed prevHash")
	}
}

type fakeSigner struct {
	priv ed25519.PrivateKey
}

func (f fakeSigner) Sign(message []byte) []byte {
	return ed25519.Sign(f.priv, message)
}

func TestBuildAndVerifyChain(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	signer := fakeSigner{priv: priv}

	var records []Record
	prev := Genesis
	for i, typ := range []string{TypeSessionStart, TypeHeartbeat, TypeSessionEnd, TypeSessionSeal} {
		r, err := BuildRecord(typ, "sess1", json.RawMessage(`{}`), prev, signer)
		if err != nil {
			t.Fatalf("BuildRecord[%d]: %v", i, err)
		}
		records = append(records, r)
		prev = r.Hash
	}

	result := VerifyChain(records, pub)
	if !result.Valid {
		t.Fatalf("expected valid chain, brokenAt=%d", result.BrokenAt)
	}
	if !result.SignatureValid {
		t.Fatalf("expected signatures to verify")
	}

	// Tamper with record 1's data; the chain must break there.
	tampered := make([]Record, len(records))
	copy(tampered, records)
	tampered[1].Data = json.RawMessage(`{"tampered":true}`)
	result = VerifyChain(tampered, pub)
	if result.Valid {
		t.Fatalf("expected tampered chain to be invalid")
	}
	if result.BrokenAt != 1 {
		t.Fatalf("expected brokenAt=1, got %d", result.BrokenAt)
	}
}

func TestVerifyChainNoKey(t *testing.T) {
	result := VerifyChain(nil, nil)
	if !result.Valid || !result.SignatureValid {
		t.Fatalf("empty chain with no key should be valid and signature-valid")
	}

	r, err := BuildRecord(TypeSessionStart, "sess1", json.RawMessage(`{}`), Genesis, nil)
	if err != nil {
		t.Fatalf("BuildRecord: %v", err)
	}
	if r.Signature != Unsigned {
		t.Fatalf("expected unsigned record, got %q", r.Signature)
	}

	result = VerifyChain([]Record{r}, nil)
	if !result.Valid {
		t.Fatalf("hash-only verification should still pass")
	}
	if result.SignatureValid {
		t.Fatalf("expected SignatureValid=false when no key supplied and records exist")
	}
}

func TestGenesisPrevHash(t *testing.T) {
	r, err := BuildRecord(TypeSessionStart, "sess1", json.RawMessage(`{}`), Genesis, nil)
	if err != nil {
		t.Fatalf("BuildRecord: %v", err)
	}
	if r.PrevHash != Genesis {
		t.Fatalf("expected genesis prev_hash, got %q", r.PrevHash)
	}
}
