package server

import (
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"github.com/urfave/negroni"
)

func newLimiter(window time.Duration, max int64) *limiter.Limiter {
	return limiter.New(memory.NewStore(), limiter.Rate{Period: window, Limit: max})
}

// Handler returns the router behind the middleware chain:
// recovery, request log, rate limit, CORS, session loader
func (svc *Service) Handler() http.Handler {
	recovery := negroni.NewRecovery()
	recovery.Logger = svc.logger
	recovery.PrintStack = false

	n := negroni.New()
	n.Use(recovery)
	n.UseFunc(svc.logRequest)
	n.Use(svc.rateLimit())
	n.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))
	n.Use(svc.sessions)
	n.UseHandler(svc.router)
	return n
}

// logRequest captures http related metrics
func (svc *Service) logRequest(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	m := httpsnoop.CaptureMetrics(next, w, r)
	svc.metrics.observeRequest(r.Method, m.Code, m.Duration)
	svc.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"url":    r.URL.String(),
		"code":   m.Code,
		"dt":     m.Duration.String(),
		"bytes":  m.Written,
	}).Info("Request handled")
}

// rateLimit counts every request per client IP before routing
func (svc *Service) rateLimit() negroni.Handler {
	mw := stdlib.NewMiddleware(svc.limiter,
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"error": "Too many requests, please try again later.",
			})
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			svc.logger.WithFields(logrus.Fields{
				"err": err.Error(),
			}).Error("Rate limiter failure")
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"error": "Server error",
			})
		}),
	)
	return negroni.HandlerFunc(func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		mw.Handler(next).ServeHTTP(w, r)
	})
}
