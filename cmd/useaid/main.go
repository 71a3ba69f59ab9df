// Command useaid is the long-running local daemon: it owns the session
// engine, the signing keystore, and the HTTP transport that AI coding
// tools talk to.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/useai-dev/useai-core/internal/daemon"
	"github.com/useai-dev/useai-core/internal/keystore"
	"github.com/useai-dev/useai-core/internal/logging"
	"github.com/useai-dev/useai-core/internal/store"
	"github.com/useai-dev/useai-core/internal/supervisorinstall"
)

// Version is overwritten at release build time via -ldflags.
var Version = "dev"

const shutdownTimeout = 10 * time.Second

func loadKeystoreFile(path string) (keystore.File, error) {
	var f keystore.File
	b, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(b, &f); err != nil {
		return f, err
	}
	return f, nil
}

func saveKeystoreFile(path string, f keystore.File) error {
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

type daemonCmd struct {
	Port       int    `help:"Port to listen on." default:"9999"`
	Home       string `help:"Override the useai home directory (defaults to $USEAI_HOME or ~/.useai)."`
	Foreground bool   `help:"Run in the foreground instead of detaching." default:"true"`
}

type installCmd struct {
	ExecPath string `help:"Path to the useaid binary to supervise." required:""`
	Port     int    `help:"Port the supervised daemon should listen on." default:"9999"`
}

type recoverCmd struct {
	ExecPath string `help:"Path to the useaid binary." required:""`
	Port     int    `help:"Port the supervised daemon listens on." default:"9999"`
}

var cli struct {
	Daemon  daemonCmd  `cmd:"" default:"1" help:"Run the daemon in the foreground."`
	Install installCmd `cmd:"" help:"Install the OS-specific autostart supervisor unit."`
	Recover recoverCmd `cmd:"" help:"Ask the OS supervisor to restart a stuck daemon."`
}

func resolveHome(flagHome string) string {
	if flagHome != "" {
		return flagHome
	}
	if env := os.Getenv("USEAI_HOME"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".useai"
	}
	return filepath.Join(home, ".useai")
}

func (c *daemonCmd) Run() error {
	_ = godotenv.Load()

	home := resolveHome(c.Home)
	layout := store.NewLayout(home)
	if err := layout.EnsureDirs(); err != nil {
		return fmt.Errorf("prepare %s: %w", home, err)
	}

	if !c.Foreground {
		if err := spawnDetached(layout, c.Home, c.Port); err != nil {
			return fmt.Errorf("spawn detached daemon: %w", err)
		}
		fmt.Printf("daemon running in background on port %d (log: %s)\n", c.Port, layout.LogPath())
		return nil
	}

	var signer *keystore.KeyStore
	if _, err := os.Stat(layout.KeystorePath()); err == nil {
		f, loadErr := loadKeystoreFile(layout.KeystorePath())
		if loadErr != nil {
			return fmt.Errorf("read keystore: %w", loadErr)
		}
		ks, openErr := keystore.Open(f)
		if openErr != nil && openErr != keystore.ErrLocked {
			return fmt.Errorf("open keystore: %w", openErr)
		}
		signer = ks
	} else {
		ks, f, genErr := keystore.Generate()
		if genErr != nil {
			return fmt.Errorf("generate keystore: %w", genErr)
		}
		if saveErr := saveKeystoreFile(layout.KeystorePath(), f); saveErr != nil {
			return fmt.Errorf("save keystore: %w", saveErr)
		}
		signer = ks
	}

	log := logging.New().WithComponent("useaid")
	d := daemon.New(layout, signer, log, c.Port)
	if err := d.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	log.Info("daemon started", map[string]interface{}{"port": c.Port, "home": home, "version": Version})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return d.Shutdown(shutdownCtx)
}

// spawnDetached re-execs this binary with --foreground, redirecting its
// output to the daemon log file, and returns once /health answers (or the
// 60s deadline in daemon.EnsureDaemon expires) instead of blocking on the
// child — this is the "spawn a detached child ... then poll /health" flow
// client launchers get from daemon.EnsureDaemon, exposed directly on the
// CLI for a user who runs `useaid daemon --foreground=false` from a shell and
// expects it back.
func spawnDetached(layout store.Layout, homeFlag string, port int) error {
	return daemon.EnsureDaemon(port, Version, func() error {
		exe, err := os.Executable()
		if err != nil {
			return err
		}
		logFile, err := os.OpenFile(layout.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer logFile.Close()

		args := []string{"daemon", "--foreground", fmt.Sprintf("--port=%d", port)}
		if homeFlag != "" {
			args = append(args, "--home="+homeFlag)
		}
		cmd := exec.Command(exe, args...)
		cmd.Stdout = logFile
		cmd.Stderr = logFile
		cmd.Stdin = nil
		return cmd.Start()
	})
}

func (c *installCmd) Run() error {
	platform, err := supervisorinstall.CurrentPlatform()
	if err != nil {
		return err
	}
	spec := supervisorinstall.UnitSpec{
		Label:    "dev.useai.daemon",
		ExecPath: c.ExecPath,
		Args:     []string{"daemon", fmt.Sprintf("--port=%d", c.Port)},
	}
	path, err := supervisorinstall.Install(platform, spec)
	if err != nil {
		return err
	}
	fmt.Printf("installed autostart unit at %s\n", path)
	return nil
}

func (c *recoverCmd) Run() error {
	platform, err := supervisorinstall.CurrentPlatform()
	if err != nil {
		return err
	}
	spec := supervisorinstall.UnitSpec{
		Label:    "dev.useai.daemon",
		ExecPath: c.ExecPath,
		Args:     []string{"daemon", fmt.Sprintf("--port=%d", c.Port)},
	}
	return supervisorinstall.Recover(platform, spec)
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("useaid"),
		kong.Description("useai-core local coding-session daemon"),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
