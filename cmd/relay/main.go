// Command relay runs the anonymous content relay bot and its maintenance
// commands.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
