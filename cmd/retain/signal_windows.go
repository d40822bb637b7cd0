//go:build windows

package main

import (
	"os"
	"os/signal"

	"github.com/coldvault/coldvault-agent/internal/worker"
)

// setupInterrupt translates os.Interrupt into the interrupt channel the
// backup supervisors read from (§4.5). Windows has no SIGTERM equivalent
// worth distinguishing here.
func setupInterrupt() worker.Interrupt {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	interrupt := make(chan struct{})
	go func() {
		<-sigChan
		close(interrupt)
	}()
	return interrupt
}
