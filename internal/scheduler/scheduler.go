// Package scheduler runs the periodic housekeeping jobs.
package scheduler

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/patrickJVGH/FluentFlow/internal/metrics"
)

// PurgeSpec runs the recordings cleanup nightly at 3 AM.
const PurgeSpec = "0 3 * * *"

// Scheduler manages cron jobs
type Scheduler struct {
	cron   *cron.Cron
	dir    string
	maxAge time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a scheduler that purges recordings in dir older than maxAge.
// A zero maxAge disables the job.
func New(dir string, maxAge time.Duration, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		dir:    dir,
		maxAge: maxAge,
		now:    time.Now,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
	if dir != "" && maxAge > 0 {
		if _, err := s.cron.AddFunc(PurgeSpec, s.runPurge); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) runPurge() {
	n, err := s.Purge()
	if err != nil {
		s.logger.Warn().Err(err).Int("removed", n).Msg("recordings cleanup incomplete")
		return
	}
	s.logger.Info().Int("removed", n).Msg("recordings cleanup done")
}

// Purge deletes stored recordings older than the configured age and returns
// how many were removed. A missing directory is not an error.
func (s *Scheduler) Purge() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	metrics.RecordingsPurged.Add(float64(removed))
	return removed, errors.Join(errs...)
}
