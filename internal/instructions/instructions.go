// Package instructions loads the system and database-schema instruction
// files that steer every generation request, with built-in fallbacks and
// optional hot reload on file change.
package instructions

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const (
	// SystemFile holds the career counseling system instruction.
	SystemFile = "system_instruction.md"
	// SchemaFile holds the database schema description.
	SchemaFile = "db_schema_instruction.md"
)

// fallbackSystem is used when the system instruction file is unreadable.
const fallbackSystem = "You are a backend career advisory service designed for programmatic integration. Return structured JSON responses based on database analysis and AI reasoning."

// Store serves the current instruction text. Reads are cheap; reloads swap
// the cached values under the mutex.
type Store struct {
	dir    string
	logger zerolog.Logger

	mu     sync.RWMutex
	system string
	schema string

	watcher *fsnotify.Watcher
	timer   *time.Timer
	stopCh  chan struct{}
}

// NewStore loads the instruction files from dir. Missing or unreadable files
// fall back to the built-in defaults rather than failing.
func NewStore(dir string, logger zerolog.Logger) *Store {
	s := &Store{
		dir:    dir,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	s.reload()
	return s
}

// System returns the current system instruction.
func (s *Store) System() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.system
}

// Schema returns the current schema instruction.
func (s *Store) Schema() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema
}

// Full returns the combined instruction passed to the model.
func (s *Store) Full() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.schema == "" {
		return s.system
	}
	return s.system + "\n\n" + s.schema
}

// Watch starts watching the instruction directory and reloads on change.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return err
	}

	s.watcher = watcher
	go s.run()

	return nil
}

// Close stops the watcher, if one was started.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.stopCh)
	return s.watcher.Close()
}

func (s *Store) run() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			base := filepath.Base(event.Name)
			if base != SystemFile && base != SchemaFile {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				s.logger.Debug().
					Str("file", base).
					Str("op", event.Op.String()).
					Msg("Instruction file changed")
				s.scheduleReload()
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Msg("Instruction watcher error")

		case <-s.stopCh:
			return
		}
	}
}

// scheduleReload debounces bursts of file events into one reload.
func (s *Store) scheduleReload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(500*time.Millisecond, s.reload)
}

func (s *Store) reload() {
	system := s.readFile(SystemFile, fallbackSystem)
	schema := s.readFile(SchemaFile, "")

	s.mu.Lock()
	s.system = system
	s.schema = schema
	s.mu.Unlock()

	s.logger.Debug().
		Int("system_len", len(system)).
		Int("schema_len", len(schema)).
		Msg("Instructions loaded")
}

func (s *Store) readFile(name, fallback string) string {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil || strings.TrimSpace(string(data)) == "" {
		if err != nil && !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("file", name).Msg("Could not read instruction file")
		}
		return fallback
	}
	return string(data)
}
