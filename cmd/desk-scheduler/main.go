// Command desk-scheduler drives a motorized sit/stand desk on a weekly
// schedule and publishes what the desk is doing to MQTT.
package main

import (
	"fmt"
	"os"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
