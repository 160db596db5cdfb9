package server

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

func (svc *Service) handlePage(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.render(w, http.StatusOK, name, svc.page(r, title))
	}
}

func (svc *Service) handleNotFound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.render(w, http.StatusNotFound, "404", svc.page(r, "Not Found"))
	}
}

func (svc *Service) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.store.Ping(); err != nil {
			svc.logger.WithFields(logrus.Fields{
				"err": err.Error(),
			}).Error("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
	}
}
