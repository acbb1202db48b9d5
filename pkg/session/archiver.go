package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/hoangnp/careerpilot/internal/observability"
)

// DefaultRetention is how long a session stays in the live directory.
const DefaultRetention = 30 * 24 * time.Hour

// Archiver moves stale sessions into the archive directory on a cron
// schedule.
type Archiver struct {
	store      *Store
	archiveDir string
	retention  time.Duration
	cron       *cron.Cron
}

// NewArchiver creates an archiver for the given store.
func NewArchiver(store *Store, archiveDir string, retention time.Duration) *Archiver {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Archiver{
		store:      store,
		archiveDir: archiveDir,
		retention:  retention,
	}
}

// Start schedules the sweep. The spec is a standard 5-field cron
// expression.
func (a *Archiver) Start(spec string) error {
	if a.cron != nil {
		return fmt.Errorf("archiver is already running")
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := a.Sweep(); err != nil {
			log.Error().Err(err).Msg("Session archive sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid archive schedule %q: %w", spec, err)
	}

	a.cron = c
	c.Start()

	log.Info().
		Str("schedule", spec).
		Dur("retention", a.retention).
		Msg("Session archiver started")

	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (a *Archiver) Stop() {
	if a.cron == nil {
		return
	}
	ctx := a.cron.Stop()
	<-ctx.Done()
	a.cron = nil

	log.Info().Msg("Session archiver stopped")
}

// Sweep moves every session older than the retention window into a batch
// subdirectory of the archive dir. It returns the archived session count.
func (a *Archiver) Sweep() (int, error) {
	summaries, err := a.store.List()
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	cutoff := time.Now().Add(-a.retention)

	var stale []Summary
	for _, summary := range summaries {
		if summary.CreatedAt.Before(cutoff) {
			stale = append(stale, summary)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	batch, err := gonanoid.New()
	if err != nil {
		return 0, fmt.Errorf("failed to generate batch id: %w", err)
	}
	batchDir := filepath.Join(a.archiveDir, batch)
	if err := os.MkdirAll(batchDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create archive directory: %w", err)
	}

	archived := 0
	for _, summary := range stale {
		src := a.store.path(summary.SessionID)
		dst := filepath.Join(batchDir, summary.SessionID+".json")

		lock := a.store.lockFor(summary.SessionID)
		lock.Lock()
		err := os.Rename(src, dst)
		lock.Unlock()

		if err != nil {
			log.Warn().Str("session_id", summary.SessionID).Err(err).Msg("Failed to archive session")
			continue
		}

		observability.RecordSessionArchived()
		archived++
	}

	log.Info().
		Int("archived", archived).
		Str("batch", batch).
		Msg("Session archive sweep completed")

	return archived, nil
}
