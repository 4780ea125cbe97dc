// Package config holds repository-wide workspace settings — the hero
// stack, rebase-noop policy, default forge, and diff context-line
// count — persisted through the same metadata store as the workspace
// model, under its own document key.
package config

import (
	"context"
	"errors"
	"fmt"

	"go.stackforge.dev/ws/internal/state/storage"
)

// configKey is the document key this package's settings live under,
// separate from state's virtual_branches document so a config-only
// read never has to decode the (much larger) stack/segment graph.
const configKey = "workspace_config.json"

// RebaseNoopPolicy controls whether rebase steps that would produce no
// change are dropped or kept as empty commits.
type RebaseNoopPolicy int

// Rebase no-op policies.
const (
	DropNoops RebaseNoopPolicy = iota
	KeepNoops
)

// Settings is the persisted configuration document.
type Settings struct {
	// HeroStack names the stack the workspace-commit builder (C6)
	// prefers to keep merged above all others.
	HeroStack string `json:"hero_stack,omitempty"`
	RebaseNoopPolicy RebaseNoopPolicy `json:"rebase_noop_policy"`
	// DefaultForge names the forge adapter to consult for review state
	// (e.g. "github"); empty disables forge consultation entirely.
	DefaultForge string `json:"default_forge,omitempty"`
	// ContextLines is the default unified-diff context passed to hunk
	// computations throughout C3/C5/C8.
	ContextLines int `json:"context_lines"`
}

// DefaultContextLines matches git diff's own default.
const DefaultContextLines = 3

// DefaultSettings returns the settings a freshly initialized workspace
// starts with.
func DefaultSettings() Settings {
	return Settings{RebaseNoopPolicy: DropNoops, ContextLines: DefaultContextLines}
}

// Store persists Settings through a storage.Backend.
type Store struct {
	b storage.Backend
}

// NewStore wraps a storage backend as a config Store.
func NewStore(b storage.Backend) *Store {
	return &Store{b: b}
}

// Load reads the settings document, returning DefaultSettings if none
// has been written yet.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	var cfg Settings
	if err := s.b.Get(ctx, configKey, &cfg); err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return Settings{}, fmt.Errorf("read config: %w", err)
	}
	return cfg, nil
}

// Save writes the settings document wholesale.
func (s *Store) Save(ctx context.Context, cfg Settings) error {
	return s.b.Update(ctx, storage.UpdateRequest{
		Sets:    []storage.Set{{Key: configKey, Value: cfg}},
		Message: "update workspace config",
	})
}
