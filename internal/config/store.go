package config

import (
	"fmt"
	"sync"

	apperrors "ladder_maker/pkg/errors"
)

// Store is the external configuration collaborator: ladder configurations are
// re-read every cycle and treated as read-only inputs within one.
type Store interface {
	// Reload refreshes the store's view of the configuration source.
	Reload() error

	// Schedule returns the entries the orchestrator must drive this cycle.
	Schedule() []ScheduleEntry

	// Ladder returns the ladder configuration for a schedule entry, or an
	// error wrapping apperrors.ErrConfigMissing.
	Ladder(name string) (*LadderConfig, error)
}

// FileStore reads ladder configurations from the same YAML file as the rest
// of the application config. A reload failure keeps the last good snapshot:
// stale configuration is safer than none, and the orchestrator still flattens
// anything whose entry disappears.
type FileStore struct {
	path string

	mu  sync.RWMutex
	cfg *Config
}

// NewFileStore creates a store backed by the given config file.
func NewFileStore(path string, initial *Config) *FileStore {
	return &FileStore{path: path, cfg: initial}
}

func (s *FileStore) Reload() error {
	cfg, err := LoadConfig(s.path)
	if err != nil {
		return fmt.Errorf("config reload failed: %w", err)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

func (s *FileStore) Schedule() []ScheduleEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ScheduleEntry, len(s.cfg.Schedule))
	copy(out, s.cfg.Schedule)
	return out
}

func (s *FileStore) Ladder(name string) (*LadderConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ladder, ok := s.cfg.Ladders[name]
	if !ok {
		return nil, fmt.Errorf("ladder '%s': %w", name, apperrors.ErrConfigMissing)
	}
	if err := ladder.Validate(); err != nil {
		return nil, fmt.Errorf("ladder '%s' malformed: %w: %v", name, apperrors.ErrConfigMissing, err)
	}
	return &ladder, nil
}

// StaticStore serves a fixed set of entries; used in tests.
type StaticStore struct {
	Entries []ScheduleEntry
	Configs map[string]LadderConfig
}

func (s *StaticStore) Reload() error { return nil }

func (s *StaticStore) Schedule() []ScheduleEntry { return s.Entries }

func (s *StaticStore) Ladder(name string) (*LadderConfig, error) {
	ladder, ok := s.Configs[name]
	if !ok {
		return nil, fmt.Errorf("ladder '%s': %w", name, apperrors.ErrConfigMissing)
	}
	return &ladder, nil
}
