package settings

import (
	"sync"

	"github.com/pixelpress/api/internal/model"
)

// Store holds the compression settings currently in effect. The scheduler
// reads them at admission time, so jobs pending in the same batch may end up
// compressed under different settings if the user changes them in between.
type Store struct {
	mu      sync.RWMutex
	current model.Settings
}

// NewStore creates a store initialized with the defaults
func NewStore() *Store {
	return &Store{current: model.DefaultSettings()}
}

// Current returns the settings in effect right now
func (s *Store) Current() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update applies a partial update and returns the resulting settings.
// The request is expected to be validated by the caller.
func (s *Store) Update(req *model.UpdateSettingsRequest) model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Quality != nil {
		s.current.Quality = *req.Quality
	}
	if req.MaxWidth != nil {
		s.current.MaxWidth = *req.MaxWidth
	}
	if req.MaxHeight != nil {
		s.current.MaxHeight = *req.MaxHeight
	}
	if req.Format != nil {
		s.current.Format = model.OutputFormat(*req.Format)
	}
	return s.current
}

// ApplyWebPreset atomically replaces the settings with the web-optimized preset
func (s *Store) ApplyWebPreset() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = model.WebOptimizedPreset()
	return s.current
}
