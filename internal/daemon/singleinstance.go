package daemon

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/useai-dev/useai-core/internal/logging"
)

const killTimeout = 5 * time.Second

// EnsureSingleInstance implements the startup guarantee from the design:
// read the PID file, probe /health, terminate a stale or mismatched
// instance, then bind the port (racing out anything else still holding it).
// It returns the bound listener, ready for http.Serve.
func EnsureSingleInstance(pidPath string, port int, version string, log *logging.Logger) (net.Listener, bool, error) {
	if existing, err := readPIDFile(pidPath); err == nil {
		if processAlive(existing.PID) {
			if probeHealth(existing.Port, version) {
				log.Info("redundant daemon start; existing instance is healthy", map[string]interface{}{"pid": existing.PID})
				return nil, true, nil
			}
			log.Warn("existing daemon on wrong version; terminating", map[string]interface{}{"pid": existing.PID})
			terminate(existing.PID)
		}
		removePIDFile(pidPath)
	}

	listener, err := bindWithRetry(port, log)
	if err != nil {
		return nil, false, err
	}

	if err := writePIDFile(pidPath, newPIDFile(port)); err != nil {
		listener.Close()
		return nil, false, fmt.Errorf("write pid file: %w", err)
	}
	return listener, false, nil
}

func bindWithRetry(port int, log *logging.Logger) (net.Listener, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	listener, err := net.Listen("tcp", addr)
	if err == nil {
		return listener, nil
	}

	log.Warn("port in use; resolving and terminating holder", map[string]interface{}{"port": port})
	for _, pid := range pidsOnPort(port) {
		terminate(pid)
	}

	listener, err = net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("PORT_IN_USE: bind %s after retry: %w", addr, err)
	}
	return listener, nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func terminate(pid int) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	proc.Signal(syscall.SIGTERM)

	deadline := time.Now().Add(killTimeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	proc.Signal(syscall.SIGKILL)
}

func probeHealth(port int, expectedVersion string) bool {
	client := http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var body struct {
		Version string `json:"version"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return false
	}
	return body.Version == expectedVersion
}

// pidsOnPort uses process enumeration as a portable fallback for finding
// whatever bound the port ahead of us; it does not inspect socket tables
// directly (no cross-platform stdlib API for that), so it terminates any
// process whose name matches this daemon's own binary as a heuristic.
func pidsOnPort(port int) []int {
	procs, err := ps.Processes()
	if err != nil {
		return nil
	}
	self := os.Getpid()
	var matches []int
	exeName := selfExeName()
	for _, p := range procs {
		if p.Pid() == self {
			continue
		}
		if p.Executable() == exeName {
			matches = append(matches, p.Pid())
		}
	}
	return matches
}

func selfExeName() string {
	exe, err := os.Executable()
	if err != nil {
		return "useaid"
	}
	return filepathBase(exe)
}
