package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// Sender posts embeds to a webhook URL
type Sender interface {
	Send(ctx context.Context, url string, embeds ...*discordgo.MessageEmbed) error
}

// Commander runs a game server console command
type Commander interface {
	Run(ctx context.Context, command string) (string, error)
}

// Targets are the configured destinations. Empty values disable a kind.
type Targets struct {
	AppealsWebhook string
	ReportsWebhook string
}

// Deliverer performs jobs against their destination
type Deliverer struct {
	sender  Sender
	rcon    Commander
	targets Targets
	log     *logrus.Entry
}

// NewDeliverer creates a deliverer. rcon may be nil to disable console
// commands.
func NewDeliverer(sender Sender, rcon Commander, targets Targets, log *logrus.Entry) *Deliverer {
	return &Deliverer{sender: sender, rcon: rcon, targets: targets, log: log}
}

// Accepts reports whether kind has a configured destination
func (d *Deliverer) Accepts(kind Kind) bool {
	switch kind {
	case KindAppeal:
		return d.targets.AppealsWebhook != ""
	case KindReport:
		return d.targets.ReportsWebhook != ""
	case KindPardon:
		return d.rcon != nil
	}
	return false
}

// Deliver performs one attempt of job
func (d *Deliverer) Deliver(ctx context.Context, job Job) error {
	if !d.Accepts(job.Kind) {
		return ErrNoTarget
	}
	switch job.Kind {
	case KindAppeal:
		return d.sendEmbed(ctx, d.targets.AppealsWebhook, job)
	case KindReport:
		return d.sendEmbed(ctx, d.targets.ReportsWebhook, job)
	case KindPardon:
		out, err := d.rcon.Run(ctx, job.Command)
		if err != nil {
			return fmt.Errorf("rcon %q: %w", job.Command, err)
		}
		d.log.WithFields(logrus.Fields{
			"command": job.Command,
			"output":  out,
		}).Info("RCON command executed")
		return nil
	}
	return ErrNoTarget
}

func (d *Deliverer) sendEmbed(ctx context.Context, url string, job Job) error {
	if job.Embed == nil {
		return fmt.Errorf("%s job without embed", job.Kind)
	}
	return d.sender.Send(ctx, url, job.Embed)
}
