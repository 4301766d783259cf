// Package scheduler provides cron-based scheduling for automated imports of
// backup files dropped into a watch directory.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/retext/retext/internal/importer"
	"github.com/robfig/cron/v3"
)

// ImportFunc is the callback invoked per backup file found in the watch
// directory. *importer.Summary carries the per-file counts.
type ImportFunc func(ctx context.Context, path string) (*importer.Summary, error)

// Scheduler runs a cron job that scans a directory for *.xml backups and
// imports each one. Fingerprint deduplication makes repeat scans of the same
// backup a no-op, so the job does not track which files it has seen.
type Scheduler struct {
	cron       *cron.Cron
	watchDir   string
	importFunc ImportFunc
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler scanning watchDir on the given cron schedule.
func New(watchDir, cronExpr string, importFunc ImportFunc, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
		))),
		watchDir:   watchDir,
		importFunc: importFunc,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}

	if _, err := s.cron.AddFunc(cronExpr, s.runScan); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return s, nil
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.logger.Info("scheduled auto-import", "watch_dir", s.watchDir)
	s.cron.Start()
}

// Stop halts the cron loop and waits for an in-flight scan to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.wg.Wait()
}

// LastResult reports the completion time and error of the most recent scan.
func (s *Scheduler) LastResult() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

// runScan imports every backup file currently in the watch directory.
// Overlapping runs are skipped rather than queued.
func (s *Scheduler) runScan() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.lastRun = time.Now()
		s.mu.Unlock()
		s.wg.Done()
	}()

	err := s.Scan(s.ctx)

	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled import failed", "error", err)
	}
}

// Scan performs one pass over the watch directory. A failed file is logged
// and does not stop the remaining files; the first error is returned.
func (s *Scheduler) Scan(ctx context.Context) error {
	matches, err := filepath.Glob(filepath.Join(s.watchDir, "*.xml"))
	if err != nil {
		return fmt.Errorf("scan watch dir: %w", err)
	}
	sort.Strings(matches)

	var firstErr error
	for _, path := range matches {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		summary, err := s.importFunc(ctx, path)
		if err != nil {
			s.logger.Error("auto-import failed", "file", path, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.logger.Info("auto-import complete",
			"file", path,
			"imported", summary.Imported,
			"duplicates", summary.Duplicates,
			"skipped", summary.Skipped,
		)
	}
	return firstErr
}
