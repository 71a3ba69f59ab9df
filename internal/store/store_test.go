package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/useai-dev/useai-core/internal/chain"
)

func TestLayoutEnsureDirs(t *testing.T) {
	l := NewLayout(filepath.Join(t.TempDir(), "home"))
	if err := l.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, d := range []string{l.Base, l.ActiveDir(), l.SealedDir()} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Fatalf("expected dir %s to exist", d)
		}
	}
}

func TestJSONListMissingIsEmpty(t *testing.T) {
	var out []string
	LoadJSONList(filepath.Join(t.TempDir(), "nope.json"), &out)
	if out != nil {
		t.Fatalf("expected nil slice for missing file, got %v", out)
	}
}

func TestJSONListRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.json")
	in := []string{"a", "b", "c"}
	if err := SaveJSONList(path, in); err != nil {
		t.Fatalf("SaveJSONList: %v", err)
	}
	var out []string
	LoadJSONList(path, &out)
	if len(out) != 3 || out[0] != "a" || out[2] != "c" {
		t.Fatalf("round trip mismatch: %v", out)
	}
}

func TestAppendAndReadChainTolerantOfPartialLastLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sess.jsonl")

	r1, err := chain.BuildRecord(chain.TypeSessionStart, "sess1", json.RawMessage(`{}`), chain.Genesis, nil)
	if err != nil {
		t.Fatalf("BuildRecord: %v", err)
	}
	if err := AppendChainLine(path, r1); err != nil {
		t.Fatalf("AppendChainLine: %v", err)
	}
	r2, err := chain.BuildRecord(chain.TypeHeartbeat, "sess1", json.RawMessage(`{}`), r1.Hash, nil)
	if err != nil {
		t.Fatalf("BuildRecord: %v", err)
	}
	if err := AppendChainLine(path, r2); err != nil {
		t.Fatalf("AppendChainLine: %v", err)
	}

	records, err := ReadChain(path)
	if err != nil {
		t.Fatalf("ReadChain: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	// Simulate a crash mid-write: append a truncated JSON object with no
	// trailing newline.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.WriteString(`{"id":"partial`); err != nil {
		t.Fatalf("write partial: %v", err)
	}
	f.Close()

	records, err = ReadChain(path)
	if err != nil {
		t.Fatalf("ReadChain after partial write: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected partial trailing line to be dropped, got %d records", len(records))
	}
}

func TestMoveToSealed(t *testing.T) {
	base := t.TempDir()
	l := NewLayout(base)
	if err := l.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	if err := os.WriteFile(l.ActivePath("sess1"), []byte("{}\n"), 0o600); err != nil {
		t.Fatalf("seed active file: %v", err)
	}
	if err := MoveToSealed(l, "sess1"); err != nil {
		t.Fatalf("MoveToSealed: %v", err)
	}
	if _, err := os.Stat(l.ActivePath("sess1")); !os.IsNotExist(err) {
		t.Fatalf("expected active file to be gone")
	}
	if _, err := os.Stat(l.SealedPath("sess1")); err != nil {
		t.Fatalf("expected sealed file to exist: %v", err)
	}
}
