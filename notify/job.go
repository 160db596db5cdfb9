package notify

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Kind selects where a job is delivered
type Kind string

// Job kinds
const (
	KindAppeal Kind = "appeal"
	KindReport Kind = "report"
	KindPardon Kind = "pardon"
)

// ErrNoTarget is returned when the job's kind has no configured destination
var ErrNoTarget = errors.New("no delivery target configured")

// Job is one outbound notification. Webhook kinds carry an embed, RCON kinds
// carry a console command.
type Job struct {
	Kind    Kind                    `json:"kind"`
	Embed   *discordgo.MessageEmbed `json:"embed,omitempty"`
	Command string                  `json:"command,omitempty"`
}

// Dispatcher accepts jobs without blocking the caller. It reports whether
// the job was accepted.
type Dispatcher interface {
	Dispatch(job Job) bool
}

// Encode serializes a job for a message queue
func Encode(job Job) ([]byte, error) {
	return json.Marshal(job)
}

// Decode parses a queued job
func Decode(body []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return job, fmt.Errorf("decode job: %w", err)
	}
	switch job.Kind {
	case KindAppeal, KindReport, KindPardon:
		return job, nil
	}
	return job, fmt.Errorf("decode job: unknown kind %q", job.Kind)
}
