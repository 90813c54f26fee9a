package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/anurisatria/assignd/internal/rules"
)

// FileSource keeps user rules in a JSON file and picks up external edits via
// an fsnotify watcher, so rules can be adjusted with a text editor while the
// service runs.
type FileSource struct {
	path string
	log  zerolog.Logger

	mu       sync.RWMutex
	rules    []rules.Rule
	onChange []func([]rules.Rule)

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileSource loads the rule file (a missing file means no user rules) and
// starts watching its directory for changes.
func NewFileSource(path string, log zerolog.Logger) (*FileSource, error) {
	s := &FileSource{
		path: path,
		log:  log.With().Str("component", "rulestore").Logger(),
		done: make(chan struct{}),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create rule watcher: %w", err)
	}
	// Watch the directory rather than the file itself: editors replace the
	// file on save, which drops a watch on the inode.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	s.watcher = watcher
	go s.watch()

	return s, nil
}

func (s *FileSource) UserRules(ctx context.Context) ([]rules.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]rules.Rule(nil), s.rules...), nil
}

func (s *FileSource) ReplaceUserRules(ctx context.Context, rs []rules.Rule) error {
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write rules file: %w", err)
	}
	s.rules = append([]rules.Rule(nil), rs...)
	return nil
}

func (s *FileSource) Watch(fn func([]rules.Rule)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *FileSource) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// load reads the rule file into memory. A missing file is an empty rule set.
func (s *FileSource) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.rules = nil
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("read rules file: %w", err)
	}

	var rs []rules.Rule
	if err := json.Unmarshal(data, &rs); err != nil {
		return fmt.Errorf("decode rules file: %w", err)
	}
	if err := rules.ValidateAll(rs); err != nil {
		return fmt.Errorf("invalid rules file: %w", err)
	}

	s.mu.Lock()
	s.rules = rs
	s.mu.Unlock()
	return nil
}

func (s *FileSource) watch() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := s.load(); err != nil {
				// Keep serving the last good rule set.
				s.log.Error().Err(err).Msg("rule file reload failed")
				continue
			}

			s.mu.RLock()
			fresh := append([]rules.Rule(nil), s.rules...)
			callbacks := make([]func([]rules.Rule), len(s.onChange))
			copy(callbacks, s.onChange)
			s.mu.RUnlock()

			s.log.Info().Int("rules", len(fresh)).Msg("rule file reloaded")
			for _, fn := range callbacks {
				fn(fresh)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Error().Err(err).Msg("rule watcher error")
		}
	}
}
