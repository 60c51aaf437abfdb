// Package settings persists the user's LLM selection and reloads it when the
// file changes on disk.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/hypermind/internal/apperr"
	"github.com/starford/hypermind/internal/generate"
	"github.com/starford/hypermind/internal/models"
	"github.com/starford/hypermind/internal/storage"
)

// Settings is the content of the settings file.
type Settings struct {
	LLM models.LLM `json:"llm" yaml:"llm"`
}

// Validate validates the settings.
func (s *Settings) Validate() error {
	llm := &s.LLM
	return validation.ValidateStruct(llm,
		validation.Field(&llm.Service, validation.Required, validation.Length(1, 64)),
		validation.Field(&llm.Model,
			validation.When(llm.Service != generate.ServiceOffline, validation.Required),
			validation.Length(0, 128)),
	)
}

// Store loads and saves settings through a storage.Provider and tells
// subscribers about changes.
type Store struct {
	files    storage.Provider
	path     string
	defaults Settings
	logger   *slog.Logger

	mu      sync.RWMutex
	current Settings
	subs    []func(Settings)
}

// NewStore returns a store for the settings file at path. defaults are used
// until a file exists.
func NewStore(files storage.Provider, path string, defaults Settings, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{files: files, path: path, defaults: defaults, current: defaults, logger: logger}
}

// Current returns the settings in effect.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// LLM returns the current model selector.
func (s *Store) LLM() models.LLM {
	return s.Current().LLM
}

// OnChange registers fn to run with the new settings after every change.
func (s *Store) OnChange(fn func(Settings)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Load reads the settings file. A missing file yields the defaults. Invalid
// content is an error and leaves the current settings untouched.
func (s *Store) Load() (Settings, error) {
	next, err := s.read()
	if err != nil {
		return s.Current(), err
	}
	s.apply(next)
	return next, nil
}

// Save validates and writes settings, then applies them.
func (s *Store) Save(next Settings) error {
	if err := next.Validate(); err != nil {
		return fmt.Errorf("settings: %w: %w", apperr.ErrInvalidInput, err)
	}
	data, err := yaml.Marshal(&next)
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if err := s.files.Write(s.path, data); err != nil {
		return fmt.Errorf("settings: save: %w", err)
	}
	s.apply(next)
	return nil
}

func (s *Store) read() (Settings, error) {
	data, err := s.files.Read(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.defaults, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("settings: %w", err)
	}
	next := s.defaults
	if err := yaml.Unmarshal(data, &next); err != nil {
		return Settings{}, fmt.Errorf("settings: parse %s: %w", s.path, err)
	}
	if err := next.Validate(); err != nil {
		return Settings{}, fmt.Errorf("settings: %s: %w", s.path, err)
	}
	return next, nil
}

// apply commits next and notifies subscribers when it differs from the
// current settings.
func (s *Store) apply(next Settings) {
	s.mu.Lock()
	if next == s.current {
		s.mu.Unlock()
		return
	}
	s.current = next
	subs := append([]func(Settings){}, s.subs...)
	s.mu.Unlock()

	s.logger.Info("settings: applied",
		slog.String("service", next.LLM.Service),
		slog.String("model", next.LLM.Model))
	for _, fn := range subs {
		fn(next)
	}
}
