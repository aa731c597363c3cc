// Package prompts serves the LLM prompts, canned replies and button labels.
// The catalogue is embedded and can be overridden by a YAML file that is
// reloaded when it changes on disk.
package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Prompt keys besides the mode names.
const PromptManagerSummary = "manager_summary"

// Catalogue is one parsed prompts file.
type Catalogue struct {
	Prompts map[string]string `yaml:"prompts"`
	Texts   map[string]string `yaml:"texts"`
	Buttons map[string]string `yaml:"buttons"`
}

// Parse decodes a catalogue from YAML.
func Parse(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	return &c, nil
}

// Store hands out the current catalogue. Lookups fall back to the embedded defaults.
type Store struct {
	path     string
	defaults *Catalogue
	current  atomic.Pointer[Catalogue]
	log      *logger.Logger
}

// NewStore loads the embedded catalogue and, when path is set, the override file.
func NewStore(path string, log *logger.Logger) (*Store, error) {
	defaults, err := Parse(defaultYAML)
	if err != nil {
		return nil, fmt.Errorf("embedded prompts: %w", err)
	}
	s := &Store{path: path, defaults: defaults, log: log}
	s.current.Store(defaults)

	if path != "" {
		if err := s.Reload(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Reload re-reads the override file.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read prompts file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return err
	}
	s.current.Store(c)
	return nil
}

// Prompt returns the system prompt stored under key.
func (s *Store) Prompt(key string) string {
	return lookup(s.current.Load().Prompts, s.defaults.Prompts, key)
}

// Text returns a canned reply. {name} placeholders are replaced from args given as name, value pairs.
func (s *Store) Text(key string, args ...string) string {
	text := strings.TrimSpace(lookup(s.current.Load().Texts, s.defaults.Texts, key))
	for i := 0; i+1 < len(args); i += 2 {
		text = strings.ReplaceAll(text, "{"+args[i]+"}", args[i+1])
	}
	return text
}

// Button returns a button label.
func (s *Store) Button(key string) string {
	return lookup(s.current.Load().Buttons, s.defaults.Buttons, key)
}

func lookup(primary, fallback map[string]string, key string) string {
	if v, ok := primary[key]; ok && v != "" {
		return v
	}
	if v, ok := fallback[key]; ok {
		return v
	}
	return key
}

// Watch reloads the override file whenever it is written or replaced, until ctx is done.
// The parent directory is watched so editors that rename files are handled.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create prompts watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch prompts dir: %w", err)
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.Reload(); err != nil {
				s.log.Warn("prompts reload failed, keeping previous catalogue", "error", err)
				continue
			}
			s.log.Info("prompts reloaded", "path", s.path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("prompts watcher error", "error", err)
		}
	}
}
