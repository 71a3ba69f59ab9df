package supervisorinstall

import (
	"os"
	"strings"
	"testing"
)

func TestInstallLaunchdWritesPlist(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	spec := UnitSpec{Label: "dev.useai.daemon", ExecPath: "/usr/local/bin/useaid", Args: []string{"--foreground"}}
	path, err := installLaunchd(spec)
	if err != nil {
		t.Fatalf("installLaunchd: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read plist: %v", err)
	}
	if !strings.Contains(string(b), "ThrottleInterval") || !strings.Contains(string(b), "useaid") {
		t.Fatalf("plist missing expected content: %s", b)
	}
}

func TestInstallSystemdWritesUnit(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	spec := UnitSpec{Label: "useai-daemon", ExecPath: "/usr/local/bin/useaid"}
	path, err := installSystemd(spec)
	if err != nil {
		t.Fatalf("installSystemd: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read unit: %v", err)
	}
	if !strings.Contains(string(b), "Restart=on-failure") || !strings.Contains(string(b), "RestartSec=10") {
		t.Fatalf("unit missing expected content: %s", b)
	}
}

func TestInstallWindowsStartupWritesVBS(t *testing.T) {
	t.Setenv("APPDATA", t.TempDir())

	spec := UnitSpec{Label: "useai-daemon", ExecPath: `C:\Program Files\useai\useaid.exe`, Args: []string{"--foreground"}}
	path, err := installWindowsStartup(spec)
	if err != nil {
		t.Fatalf("installWindowsStartup: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read vbs: %v", err)
	}
	if !strings.Contains(string(b), "useaid.exe") {
		t.Fatalf("vbs missing expected content: %s", b)
	}
}
