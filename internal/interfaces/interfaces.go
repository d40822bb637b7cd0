// Package interfaces collects the small seams the backup engine programs
// against, so that the worker pool, supervisor and pipelines never depend on
// concrete config, logger or queue implementations directly.
package interfaces

import (
	"github.com/coldvault/coldvault-agent/internal/config"
	"github.com/coldvault/coldvault-agent/internal/model"
)

// ConfigManager defines the interface for managing configuration.
type ConfigManager interface {
	Get() *config.Config
	Mutate(fn func(*config.Config)) error
}

// Logger defines the interface for logging.
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
	Sync() error
}

// Queue defines the interface for the processing queue shared by the
// worker pool (§4.5).
type Queue interface {
	Load() error
	Save() error
	Size() int
	Enqueue(item *model.Item) error
	Dequeue() *model.Item
	Requeue(item *model.Item, err error) error
}
