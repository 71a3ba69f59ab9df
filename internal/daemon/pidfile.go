package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"tailscale.com/atomicfile"
)

// PIDFile is the on-disk record of the running daemon.
type PIDFile struct {
	PID       int    `json:"pid"`
	Port      int    `json:"port"`
	StartedAt string `json:"started_at"`
}

func readPIDFile(path string) (PIDFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return PIDFile{}, err
	}
	var f PIDFile
	if err := json.Unmarshal(b, &f); err != nil {
		return PIDFile{}, fmt.Errorf("parse pid file: %w", err)
	}
	return f, nil
}

func writePIDFile(path string, f PIDFile) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(path, b, 0o600)
}

func removePIDFile(path string) {
	_ = os.Remove(path)
}

func newPIDFile(port int) PIDFile {
	return PIDFile{PID: os.Getpid(), Port: port, StartedAt: time.Now().UTC().Format(time.RFC3339Nano)}
}
