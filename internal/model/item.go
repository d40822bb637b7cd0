// Package model defines the work items that flow through the backup
// engine's shared queue.
package model

import (
	"time"

	"github.com/google/uuid"
)

// OperationType identifies which backup pipeline a work item belongs to.
type OperationType string

const (
	// OperationUpload represents a file being uploaded to remote storage.
	OperationUpload OperationType = "upload"
	// OperationDownload represents a remote object being fetched to local disk.
	OperationDownload OperationType = "download"
)

// ItemStatus represents the status of a queue item.
type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusProcessing ItemStatus = "processing"
	StatusCompleted  ItemStatus = "completed"
	StatusFailed     ItemStatus = "failed"
	StatusDLQ        ItemStatus = "dead_letter_queue"
)

// Item represents one file's worth of work in the upload or download pipeline.
type Item struct {
	// ID is a unique identifier for this item, used to correlate retries and
	// log lines across worker goroutines.
	ID string `json:"id"`

	// Operation is upload or download.
	Operation OperationType `json:"operation"`

	// LocalPath is the path to the file on the local filesystem.
	LocalPath string `json:"local_path"`

	// RemoteName is the mask (or path-derived name) this file is stored
	// under in the bucket.
	RemoteName string `json:"remote_name"`

	// Status is the current status of this item.
	Status ItemStatus `json:"status"`

	// AttemptCount is the number of times this item has been processed.
	AttemptCount int `json:"attempt_count"`

	// LastAttempt is the timestamp of the last processing attempt.
	LastAttempt time.Time `json:"last_attempt"`

	// NextRetry is when the next retry should occur.
	NextRetry time.Time `json:"next_retry,omitempty"`

	// Error is the last error message.
	Error string `json:"error,omitempty"`

	// CreatedAt is when this item was created.
	CreatedAt time.Time `json:"created_at"`

	// CompletedAt is when this item was completed.
	CompletedAt time.Time `json:"completed_at,omitempty"`

	// FileSize is the plaintext size of the file in bytes.
	FileSize int64 `json:"file_size"`

	// ModTimeMillis is the local file's modification time, milliseconds
	// since epoch, as recorded when the item was enqueued.
	ModTimeMillis int64 `json:"mod_time_millis"`
}

// NewItem creates a new queue item.
func NewItem(op OperationType, localPath, remoteName string) *Item {
	return &Item{
		ID:         uuid.New().String(),
		Operation:  op,
		LocalPath:  localPath,
		RemoteName: remoteName,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}
}

// ShouldRetry determines if the item should be retried based on the max
// retries limit. maxRetries < 0 means retry indefinitely.
func (i *Item) ShouldRetry(maxRetries int) bool {
	if maxRetries < 0 {
		return true
	}
	return i.AttemptCount < maxRetries
}

// MarkProcessing marks the item as being processed.
func (i *Item) MarkProcessing() {
	i.Status = StatusProcessing
	i.AttemptCount++
	i.LastAttempt = time.Now()
}

// MarkCompleted marks the item as completed.
func (i *Item) MarkCompleted() {
	i.Status = StatusCompleted
	i.CompletedAt = time.Now()
	i.Error = ""
}

// MarkFailed updates the item's state after a failed processing attempt.
func (i *Item) MarkFailed(err error, retryDelay time.Duration) {
	i.Status = StatusFailed
	i.Error = err.Error()
	i.NextRetry = time.Now().Add(retryDelay)
}

// MarkDLQ moves the item to the dead letter queue: it has been retried the
// maximum number of times. Per §7's propagation policy this is logged and
// the worker moves on to the next item; it is never fatal to the run.
func (i *Item) MarkDLQ() {
	i.Status = StatusDLQ
}
