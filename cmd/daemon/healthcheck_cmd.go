// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

// runHealthcheckCLI probes the local daemon, for container HEALTHCHECK use.
func runHealthcheckCLI(args []string) int {
	fs := flag.NewFlagSet("healthcheck", flag.ExitOnError)
	mode := fs.String("mode", "ready", "healthcheck mode: ready (default) or live")
	port := fs.Int("port", 8080, "API port to check")
	timeout := fs.Duration("timeout", 5*time.Second, "check timeout")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing healthcheck flags: %v\n", err)
		return 1
	}

	path := "/healthz"
	if *mode == "ready" {
		path = "/readyz"
	}

	client := http.Client{Timeout: *timeout}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d%s", *port, path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck failed (network): %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "healthcheck failed (status): %s\n", resp.Status)
		return 1
	}

	fmt.Printf("healthcheck successful (%s)\n", *mode)
	return 0
}
