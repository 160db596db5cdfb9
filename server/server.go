package server

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/tdl-smp/portal/auth"
	"github.com/tdl-smp/portal/config"
	"github.com/tdl-smp/portal/notify"
	"github.com/tdl-smp/portal/server/sse"
	"github.com/tdl-smp/portal/types"
	"github.com/tdl-smp/portal/upload"
	"github.com/tdl-smp/portal/web"
	"github.com/ulule/limiter/v3"
)

// Store is the record storage used by the handlers
type Store interface {
	InsertAppeal(appeal *types.Appeal) (uint, error)
	InsertReport(report *types.Report) (uint, error)
	ListAppeals() ([]types.Appeal, error)
	UpdateAppealStatus(id uint, status, reviewer string, at time.Time) (*types.Appeal, error)
	Ping() error
	auth.Registry
}

// Deps are the collaborators of the http service
type Deps struct {
	Store    Store
	Notifier notify.Dispatcher
	Events   *sse.Broker
	Uploads  *upload.Store
	Provider auth.Provider
	// Clock defaults to time.Now
	Clock func() time.Time
}

// Service is the http front of the portal
type Service struct {
	store     Store
	router    *mux.Router
	notifier  notify.Dispatcher
	events    *sse.Broker
	uploads   *upload.Store
	provider  auth.Provider
	sessions  *auth.Store
	admin     auth.AdminCredentials
	limiter   *limiter.Limiter
	templates *template.Template
	metrics   *metrics
	clock     func() time.Time
	c         *config.Config
	logger    *logrus.Entry
}

// NewService wires the handlers. Routes are registered immediately.
func NewService(d Deps, c *config.Config, logger *logrus.Entry) (*Service, error) {
	tmpls, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}
	if d.Events == nil {
		d.Events = sse.NewServer(logger.WithField("origin", "sse"))
	}
	if d.Notifier == nil {
		d.Notifier = discardNotifier{}
	}
	secure := strings.HasPrefix(c.CallbackURL(), "https://")
	svc := &Service{
		store:    d.Store,
		router:   mux.NewRouter().StrictSlash(true),
		notifier: d.Notifier,
		events:   d.Events,
		uploads:  d.Uploads,
		provider: d.Provider,
		sessions: auth.NewStore(c.SessionSecret(), c.Session.CookieName, c.Session.MaxAge, secure, d.Store),
		admin: auth.AdminCredentials{
			Username: c.Admin.Username,
			Password: c.Admin.Password,
			Reviewer: c.Admin.Reviewer,
		},
		limiter:   newLimiter(c.RateLimit.Window, c.RateLimit.Max),
		templates: tmpls,
		metrics:   newMetrics(),
		clock:     clock,
		c:         c,
		logger:    logger,
	}
	svc.routes()
	return svc, nil
}

func (svc *Service) routes() {
	r := svc.router

	// Public pages
	r.HandleFunc("/", svc.handlePage("index", "")).Methods("GET")
	r.HandleFunc("/smp-info", svc.handlePage("smp-info", "SMP Info")).Methods("GET")
	r.HandleFunc("/community", svc.handlePage("community", "Community")).Methods("GET")
	r.HandleFunc("/login", svc.handlePage("login", "Login")).Methods("GET")

	// Discord login
	r.HandleFunc("/auth/discord", svc.handleDiscordLogin()).Methods("GET")
	r.HandleFunc("/auth/discord/callback", svc.handleDiscordCallback()).Methods("GET")
	r.HandleFunc("/logout", svc.handleLogout()).Methods("GET")

	// Endpoints that need a Discord identity
	r.HandleFunc("/appeal", svc.requireUser(svc.handlePage("appeal", "Ban Appeal"))).Methods("GET")
	r.HandleFunc("/report", svc.requireUser(svc.handlePage("report", "Report a Player"))).Methods("GET")
	r.HandleFunc("/submit-appeal", svc.requireUser(svc.handleSubmitAppeal())).Methods("POST")
	r.HandleFunc("/submit-report", svc.requireUser(svc.handleSubmitReport())).Methods("POST")

	// Admin review
	r.HandleFunc("/admin", svc.handleAdminIndex()).Methods("GET")
	r.HandleFunc("/admin/login", svc.handleAdminLogin()).Methods("POST")
	r.HandleFunc("/admin/logout", svc.handleAdminLogout()).Methods("POST")
	r.HandleFunc("/admin/dashboard", svc.requireAdminPage(svc.handleDashboard())).Methods("GET")
	r.HandleFunc("/admin/review/{id}", svc.requireAdminAPI(svc.handleReview())).Methods("POST")
	r.HandleFunc("/admin/events", svc.requireAdminAPI(svc.events.ServeHTTP)).Methods("GET")

	// Operations
	r.PathPrefix("/static/").Handler(http.FileServer(http.FS(web.FS))).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(svc.metrics.registry, promhttp.HandlerOpts{})).Methods("GET")
	r.HandleFunc("/healthz", svc.handleHealth()).Methods("GET")

	r.NotFoundHandler = svc.handleNotFound()
}

type discardNotifier struct{}

func (discardNotifier) Dispatch(notify.Job) bool { return false }

// Listen serves http on addr until ctx is cancelled, then shuts down
// gracefully
func (svc *Service) Listen(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		svc.logger.WithFields(logrus.Fields{
			"addr": addr,
		}).Info("The http server starts listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc.logger.Info("Shutting down the http server")
		return srv.Shutdown(shutdownCtx)
	}
}
