package types

import (
	"time"
)

// Review states shared by appeals and reports
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
)

// Ban classifications an appeal can refer to
const (
	BanPermanent = "permanent"
	BanTemporary = "temporary"
)

// Appeal represents a ban appeal submitted by a logged in Discord user
type Appeal struct {
	ID                uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	MinecraftUsername string     `gorm:"column:minecraftUsername;not null" json:"minecraftUsername"`
	DiscordUsername   string     `gorm:"column:discordUsername;not null" json:"discordUsername"`
	BanType           string     `gorm:"column:banType;not null" json:"banType"`
	BanReason         string     `gorm:"column:banReason;not null" json:"banReason"`
	BanDate           string     `gorm:"column:banDate;not null" json:"banDate"`
	AppealReason      string     `gorm:"column:appealReason;not null" json:"appealReason"`
	WhatHappened      string     `gorm:"column:whatHappened;not null" json:"whatHappened"`
	WhyUnban          string     `gorm:"column:whyUnban;not null" json:"whyUnban"`
	RulesUnderstood   bool       `gorm:"column:rulesUnderstood;not null;default:false" json:"rulesUnderstood"`
	AdditionalInfo    *string    `gorm:"column:additionalInfo" json:"additionalInfo"`
	Status            string     `gorm:"column:status;index;default:pending" json:"status"`
	SubmittedAt       time.Time  `gorm:"column:submittedAt;index;not null" json:"submittedAt"`
	ReviewedAt        *time.Time `gorm:"column:reviewedAt" json:"reviewedAt"`
	ReviewedBy        *string    `gorm:"column:reviewedBy" json:"reviewedBy"`
}

// TableName keeps the table name used by earlier deployments
func (Appeal) TableName() string { return "appeals" }

// BanTypeLabel is the human readable ban classification
func (a Appeal) BanTypeLabel() string {
	if a.BanType == BanPermanent {
		return "Permanent Ban"
	}
	return "Temporary Ban"
}

// Report represents a player report with uploaded video evidence
type Report struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerIdentifier string     `gorm:"column:playerIdentifier;not null" json:"playerIdentifier"`
	ReporterTag      string     `gorm:"column:reporterTag" json:"reporterTag"`
	VideoProofPath   string     `gorm:"column:videoProofPath;not null" json:"videoProofPath"`
	ReportReason     string     `gorm:"column:reportReason;not null" json:"reportReason"`
	AdditionalInfo   *string    `gorm:"column:additionalInfo" json:"additionalInfo"`
	TruthfulReport   bool       `gorm:"column:truthfulReport;not null;default:false" json:"truthfulReport"`
	Status           string     `gorm:"column:status;index;default:pending" json:"status"`
	SubmittedAt      time.Time  `gorm:"column:submittedAt;index;not null" json:"submittedAt"`
	ReviewedAt       *time.Time `gorm:"column:reviewedAt" json:"reviewedAt"`
	ReviewedBy       *string    `gorm:"column:reviewedBy" json:"reviewedBy"`
}

// TableName keeps the table name used by earlier deployments
func (Report) TableName() string { return "reports" }

// SessionRecord is a session id issued to a browser. A session cookie is
// only honoured while its record exists, is unrevoked and unexpired.
type SessionRecord struct {
	ID        string     `gorm:"primaryKey;column:id"`
	CreatedAt time.Time  `gorm:"column:createdAt;not null"`
	ExpiresAt time.Time  `gorm:"column:expiresAt;index;not null"`
	RevokedAt *time.Time `gorm:"column:revokedAt"`
}

// TableName of the session registry
func (SessionRecord) TableName() string { return "sessions" }

// IsReviewStatus reports whether s is a status an admin may set
func IsReviewStatus(s string) bool {
	return s == StatusApproved || s == StatusDenied
}

// OptionalString returns nil for an empty string
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
