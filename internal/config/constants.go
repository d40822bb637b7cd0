package config

import "time"

// DefaultConfigPath is the config file name assumed when -c/--config is not
// given on the command line.
const DefaultConfigPath = "retain.cfg"

// DefaultManifestPath is the local manifest file name.
const DefaultManifestPath = "manifest.json"

// RemoteManifestName is the object name the manifest checkpoint is stored
// under in the remote bucket.
const RemoteManifestName = "manifest.json"

// DefaultKeyFilePath is the on-disk location of the 32-byte symmetric key.
const DefaultKeyFilePath = "retain-rs-key"

// DefaultMaxRetries is the number of attempts the worker pool makes at a
// single file before logging and moving on (§7).
const DefaultMaxRetries = 5

// DefaultBaseDelay is the initial backoff delay between retries (§4.6/§4.7).
const DefaultBaseDelay = 5 * time.Second

// DefaultMaxDelay caps the exponential backoff applied across retries.
const DefaultMaxDelay = 5 * time.Minute

// WorkerPoolSize is the design-default worker count W (§4.5).
const WorkerPoolSize = 8

// SupervisorPollInterval is how often the supervisor checks the interrupt
// channel and worker idle state (§4.5).
const SupervisorPollInterval = 5 * time.Second

// CheckpointInterval is how often the upload supervisor checkpoints the
// manifest to remote even if workers never go idle (§4.5).
const CheckpointInterval = 5 * time.Minute

// RemoteListPageSize is the page size requested when listing every remote
// object during full-mode cleanup (§4.8).
const RemoteListPageSize = 10000
