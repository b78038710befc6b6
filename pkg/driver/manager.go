package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/leapstack-labs/leaporm/pkg/core"
)

// Manager owns the named connections lent to the executor. Entity types
// reference connections by name; an empty name resolves to the default.
// The manager opens and closes connections; nothing above it does.
type Manager struct {
	mu          sync.RWMutex
	conns       map[string]Driver
	defaultName string
	logger      *slog.Logger
}

// NewManager creates an empty connection manager. A nil logger uses a
// discard logger.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		conns:  make(map[string]Driver),
		logger: logger,
	}
}

// Open creates a driver from the registry for cfg.Type, connects it, and
// stores it under name. The first opened connection becomes the default.
func (m *Manager) Open(ctx context.Context, name string, cfg Config) error {
	d, err := New(cfg, m.logger)
	if err != nil {
		return err
	}
	if err := d.Connect(ctx, cfg); err != nil {
		return fmt.Errorf("connection %q: %w", name, err)
	}
	m.Add(name, d)
	return nil
}

// Add stores an already-connected driver under name. The first added
// connection becomes the default.
func (m *Manager) Add(name string, d Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[name] = d
	if m.defaultName == "" {
		m.defaultName = name
	}
	m.logger.Debug("connection registered", slog.String("name", name))
}

// SetDefault marks name as the default connection.
func (m *Manager) SetDefault(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultName = name
}

// Connection returns the driver stored under name, or the default when
// name is empty. A missing connection is a configuration error, surfaced
// immediately and never retried.
func (m *Manager) Connection(name string) (Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if name == "" {
		name = m.defaultName
	}
	if name == "" {
		return nil, fmt.Errorf("no connection configured")
	}
	d, ok := m.conns[name]
	if !ok {
		return nil, &UnknownConnectionError{Name: name, Available: m.namesLocked()}
	}
	return d, nil
}

// Names returns all connection names (sorted).
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.namesLocked()
}

func (m *Manager) namesLocked() []string {
	names := make([]string, 0, len(m.conns))
	for name := range m.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every connection, collecting per-connection failures.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs core.ErrorList
	for name, d := range m.conns {
		if err := d.Close(); err != nil {
			errs.Append(fmt.Errorf("connection %q: %w", name, err))
		}
		delete(m.conns, name)
	}
	m.defaultName = ""
	return errs.Err()
}

// UnknownConnectionError is returned when a named connection does not
// exist.
type UnknownConnectionError struct {
	Name      string
	Available []string
}

func (e *UnknownConnectionError) Error() string {
	return fmt.Sprintf("unknown connection %q\nAvailable connections: %v\nHint: Check your connections in leaporm.yaml", e.Name, e.Available)
}
