package config

import (
	"fmt"
	"sync"
)

// Manager owns the single in-process Config instance for the duration of a
// command invocation, validating on load and serializing every write back to
// disk through the same Config.Save path the nonce ledger uses.
type Manager struct {
	mu         sync.RWMutex
	config     *Config
	configPath string
}

// NewManager loads and validates the configuration at configPath.
func NewManager(configPath string) (*Manager, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Manager{config: cfg, configPath: configPath}, nil
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Mutate applies fn to the configuration under the manager's write lock and
// persists the result, used by one-off encryption to record its nonce
// reservation.
func (m *Manager) Mutate(fn func(*Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn(m.config)
	if err := m.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return m.config.Save(m.configPath)
}
