// Package supervisorinstall writes the OS-specific autostart unit that
// keeps the daemon running across logins and crashes, and can clear a
// platform's "disabled after crash loop" state.
package supervisorinstall

import (
	"fmt"
	"runtime"
)

// Platform selects which autostart flavor to generate. Normally inferred
// from runtime.GOOS; exposed as a parameter so it is testable on any host.
type Platform string

const (
	PlatformDarwin  Platform = "darwin"
	PlatformLinux   Platform = "linux"
	PlatformWindows Platform = "windows"
)

// CurrentPlatform maps runtime.GOOS onto a supported Platform.
func CurrentPlatform() (Platform, error) {
	switch runtime.GOOS {
	case "darwin":
		return PlatformDarwin, nil
	case "linux":
		return PlatformLinux, nil
	case "windows":
		return PlatformWindows, nil
	default:
		return "", fmt.Errorf("unsupported platform %q", runtime.GOOS)
	}
}

// UnitSpec describes the daemon invocation the generated autostart unit
// should launch.
type UnitSpec struct {
	Label      string // reverse-DNS style label, e.g. "dev.useai.daemon"
	ExecPath   string // path to the daemon binary
	Args       []string
	WorkingDir string
}

// Install generates and installs the autostart unit for platform, returning
// the path it wrote.
func Install(platform Platform, spec UnitSpec) (string, error) {
	switch platform {
	case PlatformDarwin:
		return installLaunchd(spec)
	case PlatformLinux:
		return installSystemd(spec)
	case PlatformWindows:
		return installWindowsStartup(spec)
	default:
		return "", fmt.Errorf("unsupported platform %q", platform)
	}
}

// Recover clears the platform's "disabled after crash loop" state so the
// autostart unit is eligible to run again.
func Recover(platform Platform, spec UnitSpec) error {
	switch platform {
	case PlatformDarwin:
		return recoverLaunchd(spec)
	case PlatformLinux:
		return recoverSystemd(spec)
	case PlatformWindows:
		return nil // the Windows Startup-folder launcher has no disabled state
	default:
		return fmt.Errorf("unsupported platform %q", platform)
	}
}
