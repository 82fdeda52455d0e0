// Command gaia reads and writes files on a Gaia hub.
//
// Usage:
//
//	gaia login
//	gaia put notes/a.txt ./a.txt --sign
//	gaia get notes/a.txt --verify
//	gaia ls
//	gaia batch ops.json
//
// Configuration is read from ~/.config/gaia/config.yaml (or --config) and
// GAIA_* environment variables, e.g. GAIA_PRIVATE_KEY and GAIA_HUB_URL.
package main

import (
	"fmt"
	"os"

	"github.com/stxapps/gaia-go/pkg/logger"
)

func main() {
	err := newRootCmd().Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
