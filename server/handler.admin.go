package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/tdl-smp/portal/auth"
	"github.com/tdl-smp/portal/db"
	"github.com/tdl-smp/portal/notify"
	"github.com/tdl-smp/portal/rcon"
	"github.com/tdl-smp/portal/server/sse"
	"github.com/tdl-smp/portal/types"
)

func (svc *Service) handleDashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appeals, err := svc.store.ListAppeals()
		data := svc.page(r, "Admin Dashboard")
		if err != nil {
			svc.logger.WithFields(logrus.Fields{
				"err": err.Error(),
			}).Error("Unable to get all appeals")
			svc.render(w, http.StatusInternalServerError, "error", data)
			return
		}
		data.Appeals = appeals
		svc.render(w, http.StatusOK, "admin-dashboard", data)
	}
}

type reviewRequest struct {
	Status string `json:"status"`
}

func decodeReview(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req reviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", err
		}
		return strings.TrimSpace(req.Status), nil
	}
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return strings.TrimSpace(r.PostForm.Get("status")), nil
}

func (svc *Service) handleReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := svc.logger
		id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
		if err != nil || id == 0 {
			svc.writeError(w, r, badRequest("Invalid appeal id"))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, formBodyLimit)
		status, err := decodeReview(r)
		if err != nil {
			svc.writeError(w, r, &appError{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err})
			return
		}
		if !types.IsReviewStatus(status) {
			svc.writeError(w, r, badRequest("Status must be approved or denied"))
			return
		}

		reviewer := auth.FromContext(r.Context()).Admin.Reviewer
		if reviewer == "" {
			reviewer = svc.c.Admin.Reviewer
		}
		appeal, err := svc.store.UpdateAppealStatus(uint(id), status, reviewer, svc.now())
		if errors.Is(err, db.ErrNotFound) {
			svc.writeError(w, r, &appError{Code: http.StatusNotFound, Message: "Appeal not found"})
			return
		}
		if err != nil {
			svc.writeError(w, r, &appError{Code: http.StatusInternalServerError, Message: "Failed to update appeal", Err: err})
			return
		}
		svc.metrics.reviews.WithLabelValues(status).Inc()
		log.WithFields(logrus.Fields{
			"id":       appeal.ID,
			"status":   status,
			"reviewer": reviewer,
		}).Info("Appeal reviewed")

		svc.events.Publish(sse.Event{Type: sse.EventAppealReviewed, ID: appeal.ID})
		if status == types.StatusApproved {
			svc.pardon(appeal)
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"appeal":  appeal,
		})
	}
}

// pardon queues the console command lifting the ban of an approved appeal
func (svc *Service) pardon(appeal *types.Appeal) {
	cmd, err := rcon.PardonCommand(appeal.MinecraftUsername)
	if err != nil {
		svc.logger.WithFields(logrus.Fields{
			"id":  appeal.ID,
			"err": err.Error(),
		}).Warn("Skipping automatic pardon")
		return
	}
	svc.notifier.Dispatch(notify.Job{Kind: notify.KindPardon, Command: cmd})
}
