package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled report pass
type Job func(ctx context.Context) error

// Daemon runs a job on a cron schedule inside the process
type Daemon struct {
	spec   string
	job    Job
	logger *zap.Logger
}

// NewDaemon creates a daemon for spec
func NewDaemon(spec string, job Job, logger *zap.Logger) *Daemon {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Daemon{spec: spec, job: job, logger: logger}
}

// Run blocks until ctx is cancelled. A trigger that fires while the previous
// pass is still running is skipped.
func (d *Daemon) Run(ctx context.Context) error {
	cl := cronLogger{l: d.logger.Sugar()}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	id, err := c.AddFunc(d.spec, func() {
		if err := d.job(ctx); err != nil {
			d.logger.Error("scheduled run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("error scheduling cron job: %w", err)
	}

	c.Start()
	d.logger.Info("scheduler started", zap.String("schedule", d.spec), zap.Time("next", c.Entry(id).Next))

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	d.logger.Info("scheduler stopped")
	return nil
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
