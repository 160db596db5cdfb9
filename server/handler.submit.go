package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tdl-smp/portal/auth"
	"github.com/tdl-smp/portal/notify"
	"github.com/tdl-smp/portal/server/sse"
	"github.com/tdl-smp/portal/types"
	"github.com/tdl-smp/portal/upload"
)

func (svc *Service) handleSubmitAppeal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := svc.logger
		identity := auth.FromContext(r.Context()).Identity

		r.Body = http.MaxBytesReader(w, r.Body, formBodyLimit)
		form, err := decodeAppeal(r)
		if err != nil {
			svc.metrics.submission("appeal", "invalid")
			svc.writeError(w, r, &appError{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err})
			return
		}
		// The Discord tag always comes from the session
		form.DiscordUsername = identity.Tag
		if e := form.check(); e != nil {
			svc.metrics.submission("appeal", "invalid")
			svc.writeError(w, r, e)
			return
		}

		appeal := &types.Appeal{
			MinecraftUsername: form.MinecraftUsername,
			DiscordUsername:   form.DiscordUsername,
			BanType:           form.BanType,
			BanReason:         form.BanReason,
			BanDate:           form.BanDate,
			AppealReason:      form.AppealReason,
			WhatHappened:      form.WhatHappened,
			WhyUnban:          form.WhyUnban,
			RulesUnderstood:   true,
			AdditionalInfo:    types.OptionalString(form.AdditionalInfo),
		}
		id, err := svc.store.InsertAppeal(appeal)
		if err != nil {
			svc.metrics.submission("appeal", "error")
			svc.writeError(w, r, &appError{
				Code:    http.StatusInternalServerError,
				Message: "Failed to submit appeal. Please try again.",
				Err:     err,
			})
			return
		}
		appeal.ID = id
		svc.metrics.submission("appeal", "ok")
		log.WithFields(logrus.Fields{
			"id":        id,
			"minecraft": appeal.MinecraftUsername,
			"discord":   appeal.DiscordUsername,
		}).Info("Ban appeal submitted")

		svc.notifier.Dispatch(notify.Job{Kind: notify.KindAppeal, Embed: notify.AppealEmbed(appeal, svc.now())})
		svc.events.Publish(sse.Event{Type: sse.EventAppealCreated, ID: id})

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Ban appeal submitted successfully!",
		})
	}
}

func (svc *Service) handleSubmitReport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := svc.logger
		identity := auth.FromContext(r.Context()).Identity

		// Leave room for the text fields around the file
		r.Body = http.MaxBytesReader(w, r.Body, svc.uploads.MaxBytes+formBodyLimit)
		if err := r.ParseMultipartForm(formMemoryMax); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			svc.metrics.submission("report", "invalid")
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				svc.writeError(w, r, svc.tooLarge(err))
				return
			}
			svc.writeError(w, r, &appError{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err})
			return
		}
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}

		fh := videoPart(r)
		if fh != nil {
			if err := svc.uploads.Check(fh); err != nil {
				svc.metrics.submission("report", "invalid")
				svc.writeError(w, r, svc.uploadError(err))
				return
			}
		}
		form := &reportForm{
			PlayerIdentifier: strings.TrimSpace(r.PostForm.Get("playerIdentifier")),
			ReportReason:     strings.TrimSpace(r.PostForm.Get("reportReason")),
			AdditionalInfo:   strings.TrimSpace(r.PostForm.Get("additionalInfo")),
			TruthfulReport:   truthy(r.PostForm.Get("truthfulReport")),
			VideoProof:       fh != nil,
		}
		if e := form.check(); e != nil {
			svc.metrics.submission("report", "invalid")
			svc.writeError(w, r, e)
			return
		}

		stored, err := svc.uploads.Save(fh)
		if err != nil {
			svc.metrics.submission("report", "error")
			svc.writeError(w, r, svc.uploadError(err))
			return
		}
		report := &types.Report{
			PlayerIdentifier: form.PlayerIdentifier,
			ReporterTag:      identity.Tag,
			VideoProofPath:   stored.Path,
			ReportReason:     form.ReportReason,
			AdditionalInfo:   types.OptionalString(form.AdditionalInfo),
			TruthfulReport:   true,
		}
		id, err := svc.store.InsertReport(report)
		if err != nil {
			if rmErr := svc.uploads.Remove(stored.Path); rmErr != nil {
				log.WithFields(logrus.Fields{
					"path": stored.Path,
					"err":  rmErr.Error(),
				}).Error("Unable to remove orphaned upload")
			}
			svc.metrics.submission("report", "error")
			svc.writeError(w, r, &appError{
				Code:    http.StatusInternalServerError,
				Message: "Failed to submit report. Please try again.",
				Err:     err,
			})
			return
		}
		report.ID = id
		svc.metrics.submission("report", "ok")
		log.WithFields(logrus.Fields{
			"id":       id,
			"player":   report.PlayerIdentifier,
			"reporter": report.ReporterTag,
			"file":     stored.Name,
		}).Info("Player report submitted")

		svc.notifier.Dispatch(notify.Job{
			Kind:  notify.KindReport,
			Embed: notify.ReportEmbed(report, stored.Name, stored.Size, svc.now()),
		})
		svc.events.Publish(sse.Event{Type: sse.EventReportCreated, ID: id})

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Player report submitted successfully!",
		})
	}
}

func videoPart(r *http.Request) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File["videoProof"]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

func (svc *Service) tooLarge(err error) *appError {
	return &appError{
		Code:    http.StatusRequestEntityTooLarge,
		Message: fmt.Sprintf("File too large. Maximum size is %d MB", svc.uploads.MaxBytes/(1024*1024)),
		Err:     err,
	}
}

func (svc *Service) uploadError(err error) *appError {
	switch {
	case errors.Is(err, upload.ErrTooLarge):
		return svc.tooLarge(err)
	case errors.Is(err, upload.ErrNotVideo):
		return &appError{Code: http.StatusBadRequest, Message: "Only video files are allowed!", Err: err}
	}
	return &appError{
		Code:    http.StatusInternalServerError,
		Message: "Failed to submit report. Please try again.",
		Err:     err,
	}
}
