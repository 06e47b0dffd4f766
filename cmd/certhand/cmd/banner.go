package cmd

import (
	"fmt"
)

const banner = `
   _____           _   _    _                 _
  / ____|         | | | |  | |               | |
 | |     ___ _ __ | |_| |__| | __ _ _ __   __| |
 | |    / _ \ '__|| __|  __  |/ _` + "`" + ` | '_ \ / _` + "`" + ` |
 | |___|  __/ |   | |_| |  | | (_| | | | | (_| |
  \_____\___|_|    \__|_|  |_|\__,_|_| |_|\__,_|

`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Certificate Authority Admin - Version %s\x1b[0m\n\n", Version)
}
