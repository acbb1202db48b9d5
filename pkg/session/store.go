// Package session is the durable conversation store. Each session is one
// JSON document on disk, rewritten whole on every append so the file is
// always a complete, valid snapshot.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hoangnp/careerpilot/internal/observability"
)

// ErrNotFound is returned when a session id does not exist in the store.
var ErrNotFound = errors.New("session not found")

// Message is one conversation entry.
type Message struct {
	Timestamp time.Time              `json:"timestamp"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Document is the on-disk session format.
type Document struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
	Messages     []Message `json:"messages"`
}

// Summary is the listing view of a session.
type Summary struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// Stats summarizes a single session.
type Stats struct {
	SessionID       string         `json:"session_id"`
	CreatedAt       time.Time      `json:"created_at"`
	MessageCount    int            `json:"message_count"`
	RoleCounts      map[string]int `json:"role_counts"`
	DurationSeconds float64        `json:"duration_seconds"`
}

// Store persists sessions under a single directory. Writes to the same
// session are serialized by a per-session mutex.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates the store, making the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &Store{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Create creates a new session. An empty id derives one from the current
// time; a supplied id must not already exist.
func (s *Store) Create(id string) (string, error) {
	if id == "" {
		id = s.generateID()
	}
	if err := validateID(id); err != nil {
		return "", err
	}

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if s.Exists(id) {
		return "", fmt.Errorf("session already exists: %s", id)
	}

	doc := &Document{
		SessionID: id,
		CreatedAt: time.Now().UTC(),
		Messages:  []Message{},
	}
	if err := s.write(doc); err != nil {
		return "", err
	}

	log.Info().Str("session_id", id).Msg("Session created")

	return id, nil
}

// Append adds a message and rewrites the whole document.
func (s *Store) Append(id, role, content string, metadata map[string]interface{}) error {
	if err := validateID(id); err != nil {
		return err
	}

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.read(id)
	if err != nil {
		return err
	}

	doc.Messages = append(doc.Messages, Message{
		Timestamp: time.Now().UTC(),
		Role:      role,
		Content:   content,
		Metadata:  metadata,
	})
	doc.MessageCount = len(doc.Messages)

	return s.write(doc)
}

// Load returns the full session document.
func (s *Store) Load(id string) (*Document, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	start := time.Now()
	doc, err := s.read(id)
	if err != nil {
		return nil, err
	}
	observability.RecordSessionLoad(time.Since(start))

	return doc, nil
}

// Exists reports whether the session file is present.
func (s *Store) Exists(id string) bool {
	if validateID(id) != nil {
		return false
	}
	_, err := os.Stat(s.path(id))
	return err == nil
}

// List returns summaries of all sessions, newest first.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read session directory: %w", err)
	}

	var summaries []Summary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")
		doc, err := s.read(id)
		if err != nil {
			log.Warn().Str("session_id", id).Err(err).Msg("Skipping unreadable session")
			continue
		}

		summaries = append(summaries, Summary{
			SessionID:    doc.SessionID,
			CreatedAt:    doc.CreatedAt,
			MessageCount: doc.MessageCount,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	observability.SetActiveSessions(len(summaries))

	return summaries, nil
}

// Stats computes per-role message counts and the wall-clock span between
// the first and last message.
func (s *Store) Stats(id string) (*Stats, error) {
	doc, err := s.Load(id)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		SessionID:    doc.SessionID,
		CreatedAt:    doc.CreatedAt,
		MessageCount: doc.MessageCount,
		RoleCounts:   make(map[string]int),
	}
	for _, msg := range doc.Messages {
		stats.RoleCounts[msg.Role]++
	}
	if len(doc.Messages) > 1 {
		first := doc.Messages[0].Timestamp
		last := doc.Messages[len(doc.Messages)-1].Timestamp
		stats.DurationSeconds = last.Sub(first).Seconds()
	}

	return stats, nil
}

// generateID derives a timestamp id, disambiguating collisions within the
// same second.
func (s *Store) generateID() string {
	base := "session_" + time.Now().Format("20060102_150405")
	id := base
	for n := 1; s.Exists(id); n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	return id
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) read(id string) (*Document, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("corrupt session document %s: %w", id, err)
	}
	return &doc, nil
}

// write rewrites the document atomically: temp file in the same directory,
// then rename over the target.
func (s *Store) write(doc *Document) error {
	start := time.Now()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, doc.SessionID+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path(doc.SessionID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace session file: %w", err)
	}

	observability.RecordSessionSave(time.Since(start))

	return nil
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("session id must not be empty")
	}
	if strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return fmt.Errorf("invalid session id: %s", id)
	}
	return nil
}
