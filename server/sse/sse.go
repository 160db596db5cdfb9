package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Event is pushed to every connected dashboard
type Event struct {
	Type string `json:"type"`
	ID   uint   `json:"id"`
}

// Event types
const (
	EventAppealCreated  = "appeal.created"
	EventAppealReviewed = "appeal.reviewed"
	EventReportCreated  = "report.created"
)

// Broker fans events out to Server-Sent Events clients. The client registry
// is owned by the Listen goroutine.
type Broker struct {
	// Events are pushed to this channel by Publish
	Notifier chan []byte

	newClients     chan chan []byte
	closingClients chan chan []byte
	clients        map[chan []byte]bool
	done           chan struct{}
	logger         *logrus.Entry
}

// NewServer instantiates a broker
func NewServer(logger *logrus.Entry) *Broker {
	return &Broker{
		Notifier:       make(chan []byte, 16),
		newClients:     make(chan chan []byte),
		closingClients: make(chan chan []byte),
		clients:        make(map[chan []byte]bool),
		done:           make(chan struct{}),
		logger:         logger,
	}
}

// Publish queues an event without blocking. Events are dropped when the
// broker is backed up.
func (broker *Broker) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	select {
	case broker.Notifier <- data:
	default:
		broker.logger.WithFields(logrus.Fields{
			"type": e.Type,
		}).Warn("SSE notifier is full, dropping event")
	}
}

func (broker *Broker) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	flusher, ok := rw.(http.Flusher)
	if !ok {
		http.Error(rw, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "text/event-stream")
	rw.Header().Set("Cache-Control", "no-cache")
	rw.Header().Set("Connection", "keep-alive")
	rw.Header().Set("X-Accel-Buffering", "no")

	messageChan := make(chan []byte, 8)
	ctx := req.Context()
	select {
	case broker.newClients <- messageChan:
	case <-broker.done:
		return
	case <-ctx.Done():
		return
	}
	defer func() {
		select {
		case broker.closingClients <- messageChan:
		case <-broker.done:
		}
	}()

	fmt.Fprint(rw, ": connected\n\n")
	flusher.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messageChan:
			if !ok {
				return
			}
			fmt.Fprintf(rw, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// Listen runs the registry loop until ctx is cancelled
func (broker *Broker) Listen(ctx context.Context) error {
	log := broker.logger
	for {
		select {
		case <-ctx.Done():
			close(broker.done)
			for c := range broker.clients {
				close(c)
				delete(broker.clients, c)
			}
			return nil
		case s := <-broker.newClients:
			broker.clients[s] = true
			log.Debugf("SSE client added. %d registered clients", len(broker.clients))
		case s := <-broker.closingClients:
			if broker.clients[s] {
				delete(broker.clients, s)
				close(s)
			}
			log.Debugf("Removed SSE client. %d registered clients", len(broker.clients))
		case event := <-broker.Notifier:
			for c := range broker.clients {
				select {
				case c <- event:
				default:
					log.Debug("SSE client is slow, skipping event")
				}
			}
		}
	}
}
