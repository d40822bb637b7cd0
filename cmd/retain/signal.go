//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/coldvault/coldvault-agent/internal/worker"
)

// setupInterrupt translates SIGINT/SIGTERM into the single
// single-producer-single-consumer channel the backup supervisors read
// from (§4.5).
func setupInterrupt() worker.Interrupt {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	interrupt := make(chan struct{})
	go func() {
		<-sigChan
		close(interrupt)
	}()
	return interrupt
}
