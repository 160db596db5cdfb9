package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Handler performs a single delivery attempt
type Handler interface {
	Accepts(kind Kind) bool
	Deliver(ctx context.Context, job Job) error
}

// QueueOptions tunes the in-process queue
type QueueOptions struct {
	Workers  int
	Size     int
	Attempts int
	// Backoff is multiplied by the attempt number between retries
	Backoff time.Duration
}

// Queue is an in-process worker pool that retries failed deliveries
type Queue struct {
	jobs    chan Job
	handler Handler
	opts    QueueOptions
	log     *logrus.Entry
}

// NewQueue creates a queue. Call Run to start the workers.
func NewQueue(handler Handler, opts QueueOptions, log *logrus.Entry) *Queue {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.Size < 0 {
		opts.Size = 0
	}
	return &Queue{
		jobs:    make(chan Job, opts.Size),
		handler: handler,
		opts:    opts,
		log:     log,
	}
}

// Dispatch enqueues job without blocking. Jobs without a destination are
// skipped and a full queue drops the job.
func (q *Queue) Dispatch(job Job) bool {
	if !q.handler.Accepts(job.Kind) {
		return false
	}
	select {
	case q.jobs <- job:
		return true
	default:
		deliveries.WithLabelValues(string(job.Kind), "dropped").Inc()
		q.log.WithFields(logrus.Fields{
			"kind": job.Kind,
		}).Error("Notification queue is full, dropping job")
		return false
	}
}

// Run starts the workers and blocks until ctx is cancelled
func (q *Queue) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < q.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-q.jobs:
					q.process(ctx, job)
				}
			}
		}()
	}
	q.log.WithFields(logrus.Fields{
		"workers": q.opts.Workers,
	}).Info("Notification workers started")
	wg.Wait()
	return nil
}

func (q *Queue) process(ctx context.Context, job Job) {
	err := Attempt(ctx, q.handler, job, q.opts.Attempts, q.opts.Backoff)
	if err != nil {
		q.log.WithFields(logrus.Fields{
			"kind": job.Kind,
			"err":  err.Error(),
		}).Error("Unable to deliver notification")
	}
}

// Attempt delivers job, retrying up to attempts times with linear backoff
func Attempt(ctx context.Context, h Handler, job Job, attempts int, backoff time.Duration) error {
	var err error
	for i := 1; i <= attempts; i++ {
		err = h.Deliver(ctx, job)
		if err == nil {
			deliveries.WithLabelValues(string(job.Kind), "ok").Inc()
			return nil
		}
		if errors.Is(err, ErrNoTarget) {
			deliveries.WithLabelValues(string(job.Kind), "skipped").Inc()
			return nil
		}
		deliveries.WithLabelValues(string(job.Kind), "error").Inc()
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(i)):
		}
	}
	return err
}
