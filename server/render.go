package server

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tdl-smp/portal/auth"
	"github.com/tdl-smp/portal/types"
	"github.com/tdl-smp/portal/web"
)

// pageData is passed to every template
type pageData struct {
	Title       string
	SiteName    string
	IsDev       bool
	Year        int
	User        *auth.Identity
	IsAdmin     bool
	Reviewer    string
	Error       string
	MaxUploadMB int64
	Appeals     []types.Appeal
}

func loadTemplates() (*template.Template, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"deref": deref,
	}).ParseFS(web.FS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (svc *Service) page(r *http.Request, title string) *pageData {
	s := auth.FromContext(r.Context())
	data := &pageData{
		Title:       title,
		SiteName:    svc.c.SiteName,
		IsDev:       svc.c.IsDevelopment(),
		Year:        svc.now().Year(),
		User:        s.Identity,
		IsAdmin:     s.IsAdmin(),
		MaxUploadMB: svc.c.Uploads.MaxBytes / (1024 * 1024),
	}
	if s.Admin != nil {
		data.Reviewer = s.Admin.Reviewer
	}
	return data
}

// render executes a template into a buffer first so a failing template
// never leaves a half written page
func (svc *Service) render(w http.ResponseWriter, status int, name string, data *pageData) {
	var buf bytes.Buffer
	if err := svc.templates.ExecuteTemplate(&buf, name, data); err != nil {
		svc.logger.WithFields(logrus.Fields{
			"template": name,
			"err":      err.Error(),
		}).Error("Unable to render template")
		if name != "error" {
			svc.render(w, http.StatusInternalServerError, "error", data)
			return
		}
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (svc *Service) now() time.Time {
	return svc.clock().UTC()
}
