package daemon

import (
	"path/filepath"
	"testing"
)

func TestPIDFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	f := newPIDFile(9999)

	if err := writePIDFile(path, f); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}

	loaded, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("readPIDFile: %v", err)
	}
	if loaded.PID != f.PID || loaded.Port != f.Port {
		t.Fatalf("round trip mismatch: %+v vs %+v", loaded, f)
	}

	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Fatalf("expected error reading removed pid file")
	}
}

func TestProcessAliveSelf(t *testing.T) {
	// This process is, definitionally, alive.
	f := newPIDFile(0)
	if !processAlive(f.PID) {
		t.Fatalf("expected current process to report alive")
	}
	if processAlive(-1) {
		t.Fatalf("expected invalid pid to report not alive")
	}
}
