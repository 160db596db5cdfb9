package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
	"github.com/tdl-smp/portal/broker"
	"github.com/tdl-smp/portal/notify"
)

// Channel is the subset of *amqp.Channel the worker consumes from
type Channel interface {
	broker.Channel
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Worker delivers notification jobs taken from the RabbitMQ queue
type Worker struct {
	ch       Channel
	queue    string
	handler  notify.Handler
	attempts int
	backoff  time.Duration
	logger   *logrus.Entry
}

// NewWorker creates a worker for queueName
func NewWorker(ch Channel, queueName string, handler notify.Handler, attempts int, backoff time.Duration, logger *logrus.Entry) *Worker {
	return &Worker{
		ch:       ch,
		queue:    queueName,
		handler:  handler,
		attempts: attempts,
		backoff:  backoff,
		logger:   logger,
	}
}

// Run consumes jobs until ctx is cancelled or the channel closes
func (w *Worker) Run(ctx context.Context) error {
	q, err := broker.DeclareQueue(w.ch, w.queue)
	if err != nil {
		return err
	}
	err = w.ch.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := w.ch.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}
	w.logger.Info("Worker start. Listening for messages..")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			w.Handle(ctx, d)
		}
	}
}

// Handle processes one delivery. Jobs that cannot be decoded or delivered
// are rejected without requeue so they are dead-lettered.
func (w *Worker) Handle(ctx context.Context, d amqp.Delivery) {
	job, err := notify.Decode(d.Body)
	if err != nil {
		w.logger.WithFields(logrus.Fields{
			"messageBody": string(d.Body),
			"err":         err.Error(),
		}).Error("Unable to decode message into notification job")
		d.Nack(false, false)
		return
	}
	w.logger.WithFields(logrus.Fields{
		"kind": job.Kind,
	}).Debug("Received new task")

	if err := notify.Attempt(ctx, w.handler, job, w.attempts, w.backoff); err != nil {
		w.logger.WithFields(logrus.Fields{
			"kind": job.Kind,
			"err":  err.Error(),
		}).Error("Unable to deliver notification")
		d.Nack(false, false)
		return
	}
	d.Ack(false)
}
