// Package dispatch runs post-commit work (emails, events) on a small worker
// pool so the request that produced it never waits on a remote system.
package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

var ErrClosed = errors.New("dispatcher closed")

type job struct {
	name string
	fn   func(ctx context.Context) error
}

type Options struct {
	Workers int
	Queue   int
	Retries int
	Log     logrus.FieldLogger
	// NewBackOff builds the retry schedule for one job. Exponential when nil.
	NewBackOff func() backoff.BackOff
}

type Dispatcher struct {
	jobs       chan job
	log        logrus.FieldLogger
	retries    uint64
	newBackOff func() backoff.BackOff

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func New(opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Queue <= 0 {
		opts.Queue = 64
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		jobs:       make(chan job, opts.Queue),
		log:        opts.Log,
		retries:    uint64(opts.Retries),
		newBackOff: opts.NewBackOff,
		ctx:        ctx,
		cancel:     cancel,
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Enqueue never blocks. It reports false when the queue is full or the
// dispatcher is shutting down.
func (d *Dispatcher) Enqueue(name string, fn func(ctx context.Context) error) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.jobs <- job{name: name, fn: fn}:
		return true
	default:
		d.log.WithField("job", name).Warn("dispatch queue full")
		return false
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	attempt := 0
	op := func() error {
		attempt++
		return j.fn(d.ctx)
	}
	// WithMaxRetries treats zero as unlimited.
	var schedule backoff.BackOff = &backoff.StopBackOff{}
	if d.retries > 0 {
		schedule = backoff.WithMaxRetries(d.newBackOff(), d.retries)
	}
	b := backoff.WithContext(schedule, d.ctx)
	if err := backoff.Retry(op, b); err != nil {
		d.log.WithError(err).WithFields(logrus.Fields{"job": j.name, "attempts": attempt}).Error("dispatch job failed")
		return
	}
	d.log.WithFields(logrus.Fields{"job": j.name, "attempts": attempt}).Debug("dispatch job done")
}

// Close stops intake and waits for queued jobs to finish. When ctx expires
// first, in-flight retries are cancelled and ctx's error is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
