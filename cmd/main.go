package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"github.com/streadway/amqp"
	"github.com/tdl-smp/portal/auth"
	"github.com/tdl-smp/portal/broker"
	"github.com/tdl-smp/portal/config"
	"github.com/tdl-smp/portal/db"
	"github.com/tdl-smp/portal/logger"
	"github.com/tdl-smp/portal/notify"
	"github.com/tdl-smp/portal/rcon"
	"github.com/tdl-smp/portal/server"
	"github.com/tdl-smp/portal/server/sse"
	"github.com/tdl-smp/portal/upload"
	"github.com/tdl-smp/portal/worker"
	"golang.org/x/sync/errgroup"
)

const rconTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	c, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatal("Unable to load config: " + err.Error())
	}
	log, err := logger.Setup(c)
	if err != nil {
		logrus.Fatal("Unable to set up logger: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, c, log); err != nil {
		log.WithFields(logrus.Fields{
			"err": err.Error(),
		}).Fatal("Portal stopped with an error")
	}
	log.Info("Portal stopped")
}

func run(ctx context.Context, c *config.Config, log *logrus.Logger) error {
	// Connect to db
	gdb, err := db.Open(c.DatabaseFile(), log.WithField("origin", "db"))
	if err != nil {
		return err
	}
	store := db.NewService(gdb)
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"file": c.DatabaseFile(),
		"env":  c.Env,
	}).Info("Sqlite database ready")

	uploads, err := upload.NewStore(c.Uploads.Dir, c.Uploads.MaxBytes)
	if err != nil {
		return err
	}

	var commander notify.Commander
	if c.Rcon.Address != "" {
		commander = &rcon.Runner{Address: c.Rcon.Address, Password: c.Rcon.Password, Timeout: rconTimeout}
	}
	deliverer := notify.NewDeliverer(
		notify.NewWebhook(c.Webhooks.Timeout),
		commander,
		notify.Targets{AppealsWebhook: c.Webhooks.Appeals, ReportsWebhook: c.Webhooks.Reports},
		log.WithField("origin", "notify"),
	)

	g, ctx := errgroup.WithContext(ctx)

	var dispatcher notify.Dispatcher
	if c.RabbitMQ.URL != "" {
		conn, err := amqp.Dial(c.RabbitMQ.URL)
		if err != nil {
			return err
		}
		defer conn.Close()
		log.Info("RabbitMQ connection established")

		pubCh, err := conn.Channel()
		if err != nil {
			return err
		}
		defer pubCh.Close()
		b, err := broker.NewService(pubCh, c.RabbitMQ.Queue, deliverer.Accepts, log.WithField("origin", "broker"))
		if err != nil {
			return err
		}
		dispatcher = b

		// Publishing and consuming use separate channels
		subCh, err := conn.Channel()
		if err != nil {
			return err
		}
		defer subCh.Close()
		w := worker.NewWorker(subCh, c.RabbitMQ.Queue, deliverer, c.Notify.Attempts, c.Notify.Backoff, log.WithField("origin", "worker"))
		g.Go(func() error { return w.Run(ctx) })
	} else {
		q := notify.NewQueue(deliverer, notify.QueueOptions{
			Workers:  c.Notify.Workers,
			Size:     c.Notify.QueueSize,
			Attempts: c.Notify.Attempts,
			Backoff:  c.Notify.Backoff,
		}, log.WithField("origin", "queue"))
		dispatcher = q
		g.Go(func() error { return q.Run(ctx) })
	}

	events := sse.NewServer(log.WithField("origin", "sse"))
	g.Go(func() error { return events.Listen(ctx) })

	httpServer, err := server.NewService(server.Deps{
		Store:    store,
		Notifier: dispatcher,
		Events:   events,
		Uploads:  uploads,
		Provider: auth.NewDiscord(c.Discord.ClientID, c.Discord.ClientSecret, c.CallbackURL(), c.Discord.APIBase),
	}, c, log.WithField("origin", "server"))
	if err != nil {
		return err
	}
	g.Go(func() error { return httpServer.Listen(ctx, c.ListenAddr()) })

	return g.Wait()
}
