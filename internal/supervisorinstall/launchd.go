package supervisorinstall

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"
)

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Label}}</string>
	<key>ProgramArguments</key>
	<array>
		<string>{{.ExecPath}}</string>
		{{- range .Args}}
		<string>{{.}}</string>
		{{- end}}
	</array>
	{{- if .WorkingDir}}
	<key>WorkingDirectory</key>
	<string>{{.WorkingDir}}</string>
	{{- end}}
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<dict>
		<key>SuccessfulExit</key>
		<false/>
	</dict>
	<key>ThrottleInterval</key>
	<integer>10</integer>
</dict>
</plist>
`

var launchdTmpl = template.Must(template.New("launchd").Parse(launchdTemplate))

func launchdPath(label string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents", label+".plist"), nil
}

func installLaunchd(spec UnitSpec) (string, error) {
	path, err := launchdPath(spec.Label)
	if err != nil {
		return "", fmt.Errorf("resolve launchd path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create LaunchAgents dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create plist: %w", err)
	}
	defer f.Close()
	if err := launchdTmpl.Execute(f, spec); err != nil {
		return "", fmt.Errorf("render plist: %w", err)
	}

	exec.Command("launchctl", "load", "-w", path).Run() // best-effort
	return path, nil
}

func recoverLaunchd(spec UnitSpec) error {
	path, err := launchdPath(spec.Label)
	if err != nil {
		return err
	}
	exec.Command("launchctl", "unload", path).Run()
	return exec.Command("launchctl", "load", "-w", path).Run()
}
