package main

import (
	"log"
	"os"

	"github.com/cwbudde/fireflyviz/internal/firefly"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps invalid algorithm parameters to 2, the usage-error code,
// and every other failure to 1.
func exitCode(err error) int {
	if firefly.IsConfigError(err) {
		return 2
	}
	return 1
}
