package display

import (
	"fmt"
	"os"

	"github.com/afd-tools/grmovie/internal/logging"
)

// PrintBanner prints the ASCII art banner; uses Magenta if colors are enabled.
func PrintBanner() {
	if logging.Magenta != "" {
		fmt.Fprint(os.Stdout, "\033[1;95m")
	}
	fmt.Fprint(os.Stdout, `  ____ ____  __  __            _
 / ___|  _ \|  \/  | _____   _(_) ___
| |  _| |_) | |\/| |/ _ \ \ / / |/ _ \
| |_| |  _ <| |  | | (_) \ V /| |  __/
 \____|_| \_\_|  |_|\___/ \_/ |_|\___|
`)
	if logging.Magenta != "" {
		fmt.Fprintln(os.Stdout, logging.NC)
	}
}
