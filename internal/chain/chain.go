// Package chain implements the signed, hash-linked append-only record
// format used for per-session logs.
package chain

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Genesis is the prev_hash value of the first record in a chain file.
const Genesis = "GENESIS"

// Unsigned marks a record whose signature could not be produced because no
// signing key was available.
const Unsigned = "unsigned"

// Record types recognized by the chain codec.
const (
	TypeSessionStart = "session_start"
	TypeHeartbeat    = "heartbeat"
	TypeSessionEnd   = "session_end"
	TypeSessionSeal  = "session_seal"
	TypeMilestone    = "milestone"
)

// Record is one line of a session's chain file.
type Record struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
	Signature string          `json:"signature"`
}

// core is the subset of fields that participate in the hash, serialized in
// this literal key order. Readers must hash the bytes as written, never a
// re-marshaled copy, since json.RawMessage preserves unknown data keys
// verbatim.
type core struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Signer is satisfied by a keystore that can produce Ed25519 signatures.
type Signer interface {
	Sign(message []byte) []byte
}

func canonicalCore(id, typ, sessionID, timestamp string, data json.RawMessage) ([]byte, error) {
	if data == nil {
		data = json.RawMessage("{}")
	}
	return json.Marshal(core{
		ID:        id,
		Type:      typ,
		SessionID: sessionID,
		Timestamp: timestamp,
		Data:      data,
	})
}

// ComputeHash returns hex(SHA-256(canonical_json(core) || prevHash)).
func ComputeHash(id, typ, sessionID, timestamp string, data json.RawMessage, prevHash string) (string, error) {
	b, err := canonicalCore(id, typ, sessionID, timestamp, data)
	if err != nil {
		return "", fmt.Errorf("canonicalize record core: %w", err)
	}
	h := sha256.New()
	h.Write(b)
	h.Write([]byte(prevHash))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SignHash signs the raw hash bytes with key. It returns Unsigned if key is
// nil — signing is always best-effort.
func SignHash(hash string, key Signer) string {
	if key == nil {
		return Unsigned
	}
	raw, err := hex.DecodeString(hash)
	if err != nil {
		return Unsigned
	}
	sig := key.Sign(raw)
	if sig == nil {
		return Unsigned
	}
	return hex.EncodeToString(sig)
}

// BuildRecord allocates a fresh record id, stamps the current time, computes
// the hash against prevHash, signs it, and returns the fully formed record.
func BuildRecord(typ, sessionID string, data json.RawMessage, prevHash string, key Signer) (Record, error) {
	id := uuid.NewString()
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	hash, err := ComputeHash(id, typ, sessionID, ts, data, prevHash)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:        id,
		Type:      typ,
		SessionID: sessionID,
		Timestamp: ts,
		Data:      data,
		PrevHash:  prevHash,
		Hash:      hash,
		Signature: SignHash(hash, key),
	}, nil
}

// VerifyRecord recomputes the record's hash against expectedPrev and
// compares it to the stored hash.
func VerifyRecord(r Record, expectedPrev string) (bool, error) {
	if r.PrevHash != expectedPrev {
		return false, nil
	}
	want, err := ComputeHash(r.ID, r.Type, r.SessionID, r.Timestamp, r.Data, r.PrevHash)
	if err != nil {
		return false, err
	}
	return want == r.Hash, nil
}

// VerifyResult is the outcome of walking a chain from genesis.
type VerifyResult struct {
	Valid          bool
	SignatureValid bool
	BrokenAt       int // -1 when Valid
}

// VerifyChain walks records from Genesis and reports the first hash
// mismatch. Hash failures take precedence over signature failures. When
// publicKey is nil, SignatureValid is true only for an empty chain.
func VerifyChain(records []Record, publicKey ed25519.PublicKey) VerifyResult {
	prev := Genesis
	sigOK := true
	if publicKey == nil && len(records) > 0 {
		sigOK = false
	}
	for i, r := range records {
		ok, err := VerifyRecord(r, prev)
		if err != nil || !ok {
			return VerifyResult{Valid: false, SignatureValid: false, BrokenAt: i}
		}
		if publicKey != nil {
			if !verifySignature(r, publicKey) {
				sigOK = false
			}
		}
		prev = r.Hash
	}
	return VerifyResult{Valid: true, SignatureValid: sigOK, BrokenAt: -1}
}

func verifySignature(r Record, publicKey ed25519.PublicKey) bool {
	if r.Signature == Unsigned {
		return false
	}
	sig, err := hex.DecodeString(r.Signature)
	if err != nil {
		return false
	}
	raw, err := hex.DecodeString(r.Hash)
	if err != nil {
		return false
	}
	return ed25519.Verify(publicKey, raw, sig)
}
