package server

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/tdl-smp/portal/auth"
)

func (svc *Service) saveSession(w http.ResponseWriter, s *auth.Session) {
	if err := svc.sessions.Save(w, s); err != nil {
		svc.logger.WithFields(logrus.Fields{
			"err": err.Error(),
		}).Error("Unable to save session")
	}
}

// requireUser lets requests with a Discord identity through. Others are sent
// to the login page, and a GET is remembered as the page to return to.
func (svc *Service) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := auth.FromContext(r.Context())
		if s.IsAuthenticated() {
			next(w, r)
			return
		}
		if r.Method == http.MethodGet {
			s.ReturnTo = r.URL.RequestURI()
			svc.saveSession(w, s)
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	}
}

// requireAdminPage sends requests without the admin grant to /admin
func (svc *Service) requireAdminPage(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !auth.FromContext(r.Context()).IsAdmin() {
			http.Redirect(w, r, "/admin", http.StatusFound)
			return
		}
		next(w, r)
	}
}

// requireAdminAPI rejects requests without the admin grant with 403
func (svc *Service) requireAdminAPI(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !auth.FromContext(r.Context()).IsAdmin() {
			svc.writeError(w, r, &appError{Code: http.StatusForbidden, Message: "Unauthorized"})
			return
		}
		next(w, r)
	}
}
