package supervisorinstall

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

const windowsVBSTemplate = `Set objShell = CreateObject("WScript.Shell")
objShell.Run """{{.ExecPath}}"" {{.ArgsJoined}}", 0, False
`

var windowsVBSTmpl = template.Must(template.New("vbs").Parse(windowsVBSTemplate))

type windowsVBSData struct {
	ExecPath   string
	ArgsJoined string
}

func windowsStartupPath(label string) (string, error) {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		appData = filepath.Join(home, "AppData", "Roaming")
	}
	return filepath.Join(appData, "Microsoft", "Windows", "Start Menu", "Programs", "Startup", label+".vbs"), nil
}

func installWindowsStartup(spec UnitSpec) (string, error) {
	path, err := windowsStartupPath(spec.Label)
	if err != nil {
		return "", fmt.Errorf("resolve startup path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create startup dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create vbs launcher: %w", err)
	}
	defer f.Close()

	quoted := make([]string, len(spec.Args))
	for i, a := range spec.Args {
		quoted[i] = `"` + a + `"`
	}
	data := windowsVBSData{ExecPath: spec.ExecPath, ArgsJoined: strings.Join(quoted, " ")}
	if err := windowsVBSTmpl.Execute(f, data); err != nil {
		return "", fmt.Errorf("render vbs: %w", err)
	}
	return path, nil
}
