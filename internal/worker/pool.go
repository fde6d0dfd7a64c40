package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrQueueFull is returned by Submit when every queue slot is taken
var ErrQueueFull = errors.New("job queue is full")

// ErrStopped is returned by Submit after Stop
var ErrStopped = errors.New("worker pool stopped")

// Job is a unit of background work
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool runs jobs on a fixed number of goroutines
type Pool struct {
	log    *logrus.Logger
	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu      sync.RWMutex
	stopped bool
}

// NewPool starts workers goroutines sharing a queue of the given size
func NewPool(workers, queue int, log *logrus.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queue < 1 {
		queue = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		log:    log,
		jobs:   make(chan Job, queue),
		ctx:    ctx,
		cancel: cancel,
		group:  &errgroup.Group{},
	}
	for i := 0; i < workers; i++ {
		id := i
		p.group.Go(func() error {
			p.work(id)
			return nil
		})
	}
	return p
}

// Submit enqueues a job without blocking
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.jobs <- job:
		p.log.Debugf("Job %s queued", job.Name)
		return nil
	default:
		p.log.Warnf("Job %s rejected: queue full", job.Name)
		return ErrQueueFull
	}
}

// Stop drains queued jobs and waits for the workers to exit.
// Running jobs see their context cancelled when ctx expires first.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) work(id int) {
	for job := range p.jobs {
		entry := p.log.WithFields(logrus.Fields{"worker": id, "job": job.Name})
		if err := p.run(job); err != nil {
			entry.Errorf("Job failed: %v", err)
			continue
		}
		entry.Debug("Job finished")
	}
}

func (p *Pool) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorf("Job %s panicked: %v", job.Name, r)
			err = errors.New("job panicked")
		}
	}()
	return job.Run(p.ctx)
}
