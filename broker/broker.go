package broker

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
	"github.com/tdl-smp/portal/notify"
)

// Channel is the subset of *amqp.Channel the broker needs
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Service publishes notification jobs to a durable RabbitMQ queue
type Service struct {
	ch      Channel
	queue   string
	accepts func(notify.Kind) bool
	log     *logrus.Entry
}

// DeclareQueue declares the job queue. Publisher and worker must agree on
// its arguments.
func DeclareQueue(ch Channel, name string) (amqp.Queue, error) {
	args := amqp.Table{
		// Undeliverable jobs are dead-lettered for later inspection
		"x-dead-letter-exchange": name + ".dead",
		// Jobs older than a day are no longer worth announcing
		"x-message-ttl": int32(24 * 60 * 60 * 1000),
	}
	q, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		args,  // arguments
	)
	if err != nil {
		return q, fmt.Errorf("declare queue %s: %w", name, err)
	}
	return q, nil
}

// NewService declares the queue on ch. accepts filters out jobs whose kind
// has no destination so they never reach the queue.
func NewService(ch Channel, queueName string, accepts func(notify.Kind) bool, log *logrus.Entry) (*Service, error) {
	q, err := DeclareQueue(ch, queueName)
	if err != nil {
		return nil, err
	}
	return &Service{ch: ch, queue: q.Name, accepts: accepts, log: log}, nil
}

// Publish sends a job to the queue
func (s *Service) Publish(job notify.Job) error {
	body, err := notify.Encode(job)
	if err != nil {
		return err
	}
	return s.ch.Publish(
		"",      // exchange
		s.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Type:         string(job.Kind),
			Body:         body,
		})
}

// Dispatch publishes job, logging failures. It never blocks on delivery.
func (s *Service) Dispatch(job notify.Job) bool {
	if s.accepts != nil && !s.accepts(job.Kind) {
		return false
	}
	if err := s.Publish(job); err != nil {
		s.log.WithFields(logrus.Fields{
			"kind": job.Kind,
			"err":  err.Error(),
		}).Error("Unable to publish notification job")
		return false
	}
	return true
}
