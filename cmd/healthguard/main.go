// healthguard - terminal client for the HealthGuard claim verification agent
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
