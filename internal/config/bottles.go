package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"barrobot/internal/models"
)

// BottleStore keeps the bottle configuration in a yaml file.
type BottleStore struct {
	mu   sync.Mutex
	path string
}

func NewBottleStore(path string) *BottleStore {
	return &BottleStore{path: path}
}

func (s *BottleStore) Path() string { return s.path }

// Load returns the stored configuration, normalized. A missing file yields
// the defaults.
func (s *BottleStore) Load() (models.BottleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := models.DefaultBottleConfig()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read bottles: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse bottles %s: %w", s.path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Save normalizes and validates cfg, then replaces the file atomically.
func (s *BottleStore) Save(cfg models.BottleConfig) (models.BottleConfig, error) {
	cfg = cfg.Clone()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return cfg, err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return cfg, fmt.Errorf("write bottles: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return cfg, fmt.Errorf("write bottles: %w", err)
	}
	return cfg, nil
}
