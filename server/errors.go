package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// appError is a failed request. Message is shown to the client, Err is only
// logged.
type appError struct {
	Code       int
	Message    string
	Err        error
	Violations []string
}

func (e *appError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func badRequest(msg string) *appError {
	return &appError{Code: http.StatusBadRequest, Message: msg}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError logs e and writes {"error": message} with its status code
func (svc *Service) writeError(w http.ResponseWriter, r *http.Request, e *appError) {
	fields := logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"code":   e.Code,
	}
	if e.Err != nil {
		fields["err"] = e.Err.Error()
	}
	if e.Code >= http.StatusInternalServerError {
		svc.logger.WithFields(fields).Error(e.Message)
	} else {
		svc.logger.WithFields(fields).Debug(e.Message)
	}
	msg := map[string]interface{}{"error": e.Message}
	if len(e.Violations) > 0 {
		msg["violations"] = e.Violations
	}
	writeJSON(w, e.Code, msg)
}
