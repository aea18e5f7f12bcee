package daemon

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"marketscout/internal/logging"
)

// scheduler fires the daily run on a standard five-field cron spec in UTC,
// matching the UTC run dates used by the orchestrator.
type scheduler struct {
	spec  string
	cron  *cron.Cron
	entry cron.EntryID
}

func newScheduler(spec string, logger *slog.Logger, job func()) (*scheduler, error) {
	cl := cronLogger{logger: logging.NewComponentLogger(logger, "scheduler")}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	entry, err := c.AddFunc(spec, job)
	if err != nil {
		return nil, fmt.Errorf("daily schedule %q: %w", spec, err)
	}
	return &scheduler{spec: spec, cron: c, entry: entry}, nil
}

func (s *scheduler) start() {
	if s == nil {
		return
	}
	s.cron.Start()
}

// stop halts the schedule and waits for a firing job to return.
func (s *scheduler) stop() {
	if s == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *scheduler) next() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{logging.Error(err)}, keysAndValues...)...)
}

var _ cron.Logger = cronLogger{}
