package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/bank-sync/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner is what the scheduler triggers
type Runner interface {
	SyncAllUsers(ctx context.Context) error
	ReconcileAllUsers(ctx context.Context) error
}

// Scheduler runs periodic synchronization and reconciliation
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	log    *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New registers the configured schedules. An empty schedule disables that job.
func New(cfg *config.Config, runner Runner, log *logrus.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{log}),
			cron.SkipIfStillRunning(cronLogger{log}),
		)),
		runner: runner,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"sync", cfg.SyncSchedule, runner.SyncAllUsers},
		{"reconcile", cfg.ReconcileSchedule, runner.ReconcileAllUsers},
	}
	for _, job := range jobs {
		if job.spec == "" {
			log.Infof("Scheduled %s disabled", job.name)
			continue
		}
		if _, err := s.cron.AddFunc(job.spec, s.wrap(job.name, job.run)); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to schedule %s %q: %w", job.name, job.spec, err)
		}
		log.Infof("Scheduled %s: %s", job.name, job.spec)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// Entries returns the number of registered jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) wrap(name string, run func(context.Context) error) func() {
	return func() {
		start := time.Now()
		s.log.Infof("Scheduled %s started", name)
		if err := run(s.ctx); err != nil {
			s.log.Errorf("Scheduled %s failed: %v", name, err)
			return
		}
		s.log.WithField("duration", time.Since(start).String()).Infof("Scheduled %s finished", name)
	}
}

// cronLogger adapts logrus to cron.Logger
type cronLogger struct {
	log *logrus.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Errorf("%s: %v", msg, err)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
