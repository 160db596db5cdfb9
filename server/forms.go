package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	formBodyLimit = 1 << 20
	formMemoryMax = 8 << 20
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report violations with the names clients submit
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// flexBool accepts checkbox values ("on"), "true", "1" and JSON booleans
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = flexBool(t)
	case string:
		*b = flexBool(truthy(t))
	case float64:
		*b = t == 1
	default:
		*b = false
	}
	return nil
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1":
		return true
	}
	return false
}

type appealForm struct {
	MinecraftUsername string   `json:"minecraftUsername" validate:"required"`
	DiscordUsername   string   `json:"discordUsername" validate:"required"`
	BanType           string   `json:"banType" validate:"required"`
	BanReason         string   `json:"banReason" validate:"required"`
	BanDate           string   `json:"banDate" validate:"required"`
	AppealReason      string   `json:"appealReason" validate:"required"`
	WhatHappened      string   `json:"whatHappened" validate:"required"`
	WhyUnban          string   `json:"whyUnban" validate:"required"`
	AdditionalInfo    string   `json:"additionalInfo"`
	RulesUnderstood   flexBool `json:"rulesUnderstood"`
}

// appealValues restricts fields with a closed set of values
type appealValues struct {
	BanType string `json:"banType" validate:"oneof=permanent temporary"`
	BanDate string `json:"banDate" validate:"datetime=2006-01-02"`
}

type reportForm struct {
	PlayerIdentifier string `json:"playerIdentifier" validate:"required"`
	ReportReason     string `json:"reportReason" validate:"required"`
	VideoProof       bool   `json:"videoProof" validate:"required"`
	AdditionalInfo   string `json:"additionalInfo"`
	TruthfulReport   bool   `json:"truthfulReport"`
}

// decodeAppeal reads an urlencoded, multipart or JSON body
func decodeAppeal(r *http.Request) (*appealForm, error) {
	f := &appealForm{}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(f); err != nil {
			return nil, fmt.Errorf("decode json body: %w", err)
		}
	case "multipart/form-data":
		if err := r.ParseMultipartForm(formMemoryMax); err != nil {
			return nil, fmt.Errorf("parse multipart body: %w", err)
		}
		f.fromForm(r)
	default:
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form body: %w", err)
		}
		f.fromForm(r)
	}
	f.trim()
	return f, nil
}

func (f *appealForm) fromForm(r *http.Request) {
	f.MinecraftUsername = r.PostForm.Get("minecraftUsername")
	f.BanType = r.PostForm.Get("banType")
	f.BanReason = r.PostForm.Get("banReason")
	f.BanDate = r.PostForm.Get("banDate")
	f.AppealReason = r.PostForm.Get("appealReason")
	f.WhatHappened = r.PostForm.Get("whatHappened")
	f.WhyUnban = r.PostForm.Get("whyUnban")
	f.AdditionalInfo = r.PostForm.Get("additionalInfo")
	f.RulesUnderstood = flexBool(truthy(r.PostForm.Get("rulesUnderstood")))
}

func (f *appealForm) trim() {
	for _, p := range []*string{
		&f.MinecraftUsername, &f.BanType, &f.BanReason, &f.BanDate,
		&f.AppealReason, &f.WhatHappened, &f.WhyUnban, &f.AdditionalInfo,
	} {
		*p = strings.TrimSpace(*p)
	}
}

// check validates in order: required fields, closed value sets, the rules
// acknowledgement. The first failing stage is returned.
func (f *appealForm) check() *appError {
	if violations := violationsOf(validate.Struct(f)); len(violations) > 0 {
		e := badRequest("All required fields must be filled")
		e.Violations = violations
		return e
	}
	if violations := violationsOf(validate.Struct(&appealValues{BanType: f.BanType, BanDate: f.BanDate})); len(violations) > 0 {
		e := badRequest("Invalid value for field " + strings.Join(violations, ", "))
		e.Violations = violations
		return e
	}
	if !f.RulesUnderstood {
		return badRequest("You must confirm that you understand the rules")
	}
	return nil
}

func (f *reportForm) check() *appError {
	if violations := violationsOf(validate.Struct(f)); len(violations) > 0 {
		e := badRequest("All required fields must be filled and video proof must be uploaded")
		e.Violations = violations
		return e
	}
	if !f.TruthfulReport {
		return badRequest("You must confirm that this report is truthful")
	}
	return nil
}

// violationsOf lists the offending field names of a validation error
func violationsOf(err error) []string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fe.Field())
	}
	return out
}
