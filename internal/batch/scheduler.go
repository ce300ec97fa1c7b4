// Package batch fires regressions on cron schedules.
package batch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RunFunc executes one scheduled regression
type RunFunc func(ctx context.Context, e Entry) error

// Scheduler manages scheduled regressions. Due entries are queued and run
// one at a time; an entry is never queued while it is still pending or
// running.
type Scheduler struct {
	entries map[string]Entry
	parser  cron.Parser
	lastRun map[string]time.Time
	running map[string]bool
	mu      sync.RWMutex
	now     func() time.Time
	logger  *zap.Logger
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NewScheduler creates a scheduler. Entries first fire at their next cron
// time after creation.
func NewScheduler(entries []Entry, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		parser:  cronParser,
		lastRun: make(map[string]time.Time),
		running: make(map[string]bool),
		now:     time.Now,
		logger:  logger.Named("batch"),
	}
	if err := s.Reload(entries); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseCron parses a 5-field cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// Reload replaces the schedule. Entries that keep their name keep their
// last run time. On error the previous schedule stays in place.
func (s *Scheduler) Reload(entries []Entry) error {
	next := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
		next[e.Name] = e
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for name := range s.lastRun {
		if _, ok := next[name]; !ok {
			delete(s.lastRun, name)
		}
	}
	for name := range next {
		if _, ok := s.lastRun[name]; !ok {
			s.lastRun[name] = now
		}
	}
	s.entries = next
	return nil
}

// NextRun returns the next scheduled run time for an entry
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[name]
	if !ok {
		return time.Time{}
	}

	sched, err := s.parser.Parse(e.Cron)
	if err != nil {
		return time.Time{}
	}

	return sched.Next(s.now())
}

func (s *Scheduler) dueLocked(name string) bool {
	e, ok := s.entries[name]
	if !ok || s.running[name] {
		return false
	}

	sched, err := s.parser.Parse(e.Cron)
	if err != nil {
		return false
	}

	return !s.now().Before(sched.Next(s.lastRun[name]))
}

// MarkComplete marks an entry as complete
func (s *Scheduler) MarkComplete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[name] = false
	s.lastRun[name] = s.now()
}

// ListEntries returns all entry names, sorted
func (s *Scheduler) ListEntries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Due marks every due entry as running and returns them in name order
func (s *Scheduler) Due() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var due []Entry
	for _, name := range names {
		if s.dueLocked(name) {
			s.running[name] = true
			due = append(due, s.entries[name])
		}
	}
	return due
}

// Start runs the scheduler loop until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context, run RunFunc) {
	queue := make(chan Entry, 64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range queue {
			if ctx.Err() != nil {
				s.MarkComplete(e.Name)
				continue
			}
			s.logger.Info("starting scheduled regression", zap.String("name", e.Name))
			if err := run(ctx, e); err != nil {
				s.logger.Error("scheduled regression failed", zap.String("name", e.Name), zap.Error(err))
			}
			s.MarkComplete(e.Name)
		}
	}()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(queue)
			wg.Wait()
			return
		case <-ticker.C:
			for _, e := range s.Due() {
				select {
				case queue <- e:
				default:
					s.logger.Warn("regression queue full, skipping", zap.String("name", e.Name))
					s.mu.Lock()
					s.running[e.Name] = false
					s.mu.Unlock()
				}
			}
		}
	}
}
