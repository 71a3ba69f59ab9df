// Command useai-keygen bootstraps the encrypted local signing keystore
// outside of the daemon's own lazy first-use initialization — useful for
// pre-provisioning a machine image or verifying the keystore independent of
// a running daemon.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/useai-dev/useai-core/internal/keystore"
	"github.com/useai-dev/useai-core/internal/store"
)

func main() {
	home := os.Getenv("USEAI_HOME")
	if home == "" {
		fmt.Fprintln(os.Stderr, "error: USEAI_HOME must be set")
		os.Exit(1)
	}
	layout := store.NewLayout(home)
	if err := layout.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "error preparing %s: %v\n", home, err)
		os.Exit(1)
	}

	if _, err := os.Stat(layout.KeystorePath()); err == nil {
		fmt.Fprintf(os.Stderr, "error: %s already exists\n", layout.KeystorePath())
		os.Exit(1)
	}

	_, file, err := keystore.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating keystore: %v\n", err)
		os.Exit(1)
	}

	b, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error encoding keystore: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(layout.KeystorePath(), b, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "error writing keystore: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("generated keystore: %s\n", layout.KeystorePath())
}
