package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tdl-smp/portal/auth"
)

func (svc *Service) handleDiscordLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := auth.FromContext(r.Context())
		s.State = auth.NewState()
		svc.saveSession(w, s)
		http.Redirect(w, r, svc.provider.AuthCodeURL(s.State), http.StatusFound)
	}
}

func (svc *Service) handleDiscordCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := svc.logger
		s := auth.FromContext(r.Context())
		q := r.URL.Query()
		expected := s.State
		s.State = ""

		fail := func(reason string, err error) {
			fields := logrus.Fields{"reason": reason}
			if err != nil {
				fields["err"] = err.Error()
			}
			log.WithFields(fields).Warn("Discord login failed")
			svc.saveSession(w, s)
			http.Redirect(w, r, "/login", http.StatusFound)
		}

		if e := q.Get("error"); e != "" {
			fail("provider returned "+e, nil)
			return
		}
		state := q.Get("state")
		if expected == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expected)) != 1 {
			fail("state mismatch", nil)
			return
		}
		identity, err := svc.provider.Exchange(r.Context(), q.Get("code"))
		if err != nil {
			fail("exchange", err)
			return
		}
		// A new identity gets a new session id
		if err := svc.sessions.Revoke(s); err != nil {
			fail("rotate session", err)
			return
		}

		s.Identity = identity
		dest := s.ReturnTo
		s.ReturnTo = ""
		if !isLocalPath(dest) {
			dest = "/"
		}
		svc.saveSession(w, s)
		log.WithFields(logrus.Fields{
			"user": identity.Tag,
		}).Info("User logged in with Discord")
		http.Redirect(w, r, dest, http.StatusFound)
	}
}

// isLocalPath accepts only paths on this site
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}

// endSession revokes the request session server side and clears the cookie.
// The cookie is kept when revocation fails so the user can retry.
func (svc *Service) endSession(w http.ResponseWriter, r *http.Request) bool {
	if err := svc.sessions.Revoke(auth.FromContext(r.Context())); err != nil {
		svc.logger.WithFields(logrus.Fields{
			"err": err.Error(),
		}).Error("Unable to revoke session")
		svc.render(w, http.StatusInternalServerError, "error", svc.page(r, "Error"))
		return false
	}
	svc.sessions.Clear(w)
	return true
}

func (svc *Service) handleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc.endSession(w, r) {
			http.Redirect(w, r, "/", http.StatusFound)
		}
	}
}

func (svc *Service) handleAdminIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth.FromContext(r.Context()).IsAdmin() {
			http.Redirect(w, r, "/admin/dashboard", http.StatusFound)
			return
		}
		svc.render(w, http.StatusOK, "admin-login", svc.page(r, "Admin"))
	}
}

func (svc *Service) handleAdminLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, formBodyLimit)
		if err := r.ParseForm(); err != nil {
			svc.writeError(w, r, badRequest("Invalid request body"))
			return
		}
		if !svc.admin.Verify(r.PostForm.Get("username"), r.PostForm.Get("password")) {
			svc.logger.WithFields(logrus.Fields{
				"remote": r.RemoteAddr,
			}).Warn("Invalid admin login attempt")
			data := svc.page(r, "Admin")
			data.Error = "Invalid credentials"
			svc.render(w, http.StatusUnauthorized, "admin-login", data)
			return
		}
		s := auth.FromContext(r.Context())
		// The grant is issued under a fresh session id
		if err := svc.sessions.Revoke(s); err != nil {
			svc.logger.WithFields(logrus.Fields{
				"err": err.Error(),
			}).Error("Unable to rotate session")
			svc.render(w, http.StatusInternalServerError, "error", svc.page(r, "Error"))
			return
		}
		s.Admin = svc.admin.Grant(svc.now())
		svc.saveSession(w, s)
		http.Redirect(w, r, "/admin/dashboard", http.StatusFound)
	}
}

func (svc *Service) handleAdminLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc.endSession(w, r) {
			http.Redirect(w, r, "/", http.StatusFound)
		}
	}
}
