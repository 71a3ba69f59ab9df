// Package store implements the on-disk persistence layout: atomic JSON list
// files for sessions and milestones, and per-session JSONL chain files
// under data/active and data/sealed.
package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tailscale.com/atomicfile"

	"github.com/useai-dev/useai-core/internal/chain"
)

// Layout describes the base-directory file layout under USEAI_HOME.
type Layout struct {
	Base string
}

func NewLayout(base string) Layout { return Layout{Base: base} }

func (l Layout) ConfigPath() string     { return filepath.Join(l.Base, "config.json") }
func (l Layout) SessionsPath() string   { return filepath.Join(l.Base, "sessions.json") }
func (l Layout) MilestonesPath() string { return filepath.Join(l.Base, "milestones.json") }
func (l Layout) KeystorePath() string   { return filepath.Join(l.Base, "keystore.json") }
func (l Layout) ActiveDir() string      { return filepath.Join(l.Base, "data", "active") }
func (l Layout) SealedDir() string      { return filepath.Join(l.Base, "data", "sealed") }
func (l Layout) PIDPath() string        { return filepath.Join(l.Base, "daemon.pid") }
func (l Layout) LogPath() string        { return filepath.Join(l.Base, "daemon.log") }

func (l Layout) ActivePath(sessionID string) string {
	return filepath.Join(l.ActiveDir(), sessionID+".jsonl")
}

func (l Layout) SealedPath(sessionID string) string {
	return filepath.Join(l.SealedDir(), sessionID+".jsonl")
}

// EnsureDirs creates the base and data directories if absent.
func (l Layout) EnsureDirs() error {
	for _, d := range []string{l.Base, l.ActiveDir(), l.SealedDir()} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return fmt.Errorf("create dir %s: %w", d, err)
		}
	}
	return nil
}

// LoadJSONList reads a JSON-array file into out, treating a missing or
// malformed file as an empty list.
func LoadJSONList(path string, out interface{}) {
	b, err := os.ReadFile(path)
	if err != nil {
		return
	}
	_ = json.Unmarshal(b, out)
}

// SaveJSONList atomically writes v (expected to be a slice) as a JSON array.
func SaveJSONList(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(path, b, 0o600)
}

// AppendChainLine appends one chain record as a JSONL line, flushed
// synchronously, to the active chain file for sessionID. It creates the
// file (and writes nothing before it) if this is the first record.
func AppendChainLine(path string, rec chain.Record) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open chain file: %w", err)
	}
	defer f.Close()

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	b = append(b, '\n')
	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("write chain line: %w", err)
	}
	return f.Sync()
}

// ReadChain loads every complete line of a chain file. A partial (missing
// trailing newline) final line is tolerated and still parsed; a line that
// is neither terminated nor valid JSON is dropped rather than causing the
// whole read to fail, since readers must stop at the last complete record.
func ReadChain(path string) ([]chain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var records []chain.Record
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadBytes('\n')
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 {
			var rec chain.Record
			if jerr := json.Unmarshal(trimmed, &rec); jerr == nil {
				records = append(records, rec)
			} else if err != io.EOF {
				// A malformed non-final line indicates real corruption; a
				// malformed final line is the tolerated partial-write case.
				return records, fmt.Errorf("parse chain line: %w", jerr)
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return records, err
		}
	}
	return records, nil
}

// MoveToSealed atomically moves an active chain file to the sealed
// directory.
func MoveToSealed(l Layout, sessionID string) error {
	return os.Rename(l.ActivePath(sessionID), l.SealedPath(sessionID))
}

// ReadRawFile returns the entire file contents, used when packaging a
// sealed chain file into a backup blob.
func ReadRawFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteRawFile atomically writes raw chain-file text, used by restore.
func WriteRawFile(path, contents string) error {
	return atomicfile.WriteFile(path, []byte(contents), 0o600)
}
