// Package schedule runs recurring maintenance jobs on cron patterns.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one recurring maintenance task.
type Job struct {
	Name    string
	Pattern string
	// Timeout bounds one run; zero means a minute.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Runner owns the process cron scheduler. Jobs are registered before
// Start and run until Stop.
type Runner struct {
	cron   *cron.Cron
	parser cron.Parser
	logger *slog.Logger
	mu     sync.Mutex
	jobs   map[string]cron.EntryID
}

func NewRunner(log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Runner{
		cron:   cron.New(cron.WithParser(parser)),
		parser: parser,
		logger: log.With(slog.String("service", "schedule")),
		jobs:   map[string]cron.EntryID{},
	}
}

// Add registers a job. Patterns are standard five-field cron or a
// descriptor like @daily.
func (r *Runner) Add(job Job) error {
	if strings.TrimSpace(job.Name) == "" || job.Run == nil {
		return fmt.Errorf("job name and run function are required")
	}
	if _, err := r.parser.Parse(job.Pattern); err != nil {
		return fmt.Errorf("invalid cron pattern %q: %w", job.Pattern, err)
	}

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	run := job.Run
	name := job.Name

	id, err := r.cron.AddFunc(job.Pattern, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := run(ctx); err != nil {
			r.logger.Error("scheduled job failed", slog.String("job", name), slog.Any("error", err))
			return
		}
		r.logger.Debug("scheduled job completed", slog.String("job", name))
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.jobs[name] = id
	r.mu.Unlock()
	return nil
}

// Start begins running registered jobs.
func (r *Runner) Start() {
	r.cron.Start()
	r.logger.Info("schedule runner started", slog.Int("jobs", len(r.jobs)))
}

// Stop halts the scheduler and waits for running jobs to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("schedule runner stopped")
}
