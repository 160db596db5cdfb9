package notify_test

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdl-smp/portal/notify"
	"github.com/tdl-smp/portal/types"
)

var now = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func TestAppealEmbed(t *testing.T) {
	a := &types.Appeal{
		ID:                12,
		MinecraftUsername: "Steve123",
		DiscordUsername:   "Alex#1234",
		BanType:           types.BanTemporary,
		BanReason:         "spam",
		BanDate:           "2024-01-05",
		AppealReason:      "sorry",
		WhatHappened:      "chat",
		WhyUnban:          "learned",
		RulesUnderstood:   true,
	}
	e := notify.AppealEmbed(a, now)
	assert.Equal(t, "⚖️ New Ban Appeal Submitted", e.Title)
	assert.Equal(t, 0x8B0000, e.Color)
	assert.Equal(t, "Appeal ID: 12", e.Footer.Text)
	assert.Equal(t, "2024-05-06T07:08:09Z", e.Timestamp)
	require.Len(t, e.Fields, 9)
	assert.Equal(t, "Temporary Ban", e.Fields[2].Value)
	assert.Equal(t, "1/5/2024", e.Fields[3].Value)
	assert.Equal(t, "✅ Yes", e.Fields[8].Value)
	assert.True(t, e.Fields[0].Inline)
	assert.False(t, e.Fields[4].Inline)

	a.AdditionalInfo = types.OptionalString("more")
	e = notify.AppealEmbed(a, now)
	require.Len(t, e.Fields, 10)
	assert.Equal(t, "more", e.Fields[9].Value)
}

func TestAppealEmbedKeepsFieldsDeliverable(t *testing.T) {
	long := strings.Repeat("a", 3000)
	a := &types.Appeal{
		ID:                1,
		MinecraftUsername: "Steve123",
		DiscordUsername:   "Alex#1234",
		BanType:           types.BanPermanent,
		BanReason:         long,
		BanDate:           "2024-01-05",
		AppealReason:      long,
		WhatHappened:      long,
		WhyUnban:          long,
		AdditionalInfo:    types.OptionalString(long),
		RulesUnderstood:   true,
	}
	e := notify.AppealEmbed(a, now)
	for _, f := range e.Fields {
		assert.LessOrEqual(t, utf8.RuneCountInString(f.Value), 1024, f.Name)
	}
	assert.Equal(t, 1003, utf8.RuneCountInString(e.Fields[6].Value))
	assert.True(t, strings.HasSuffix(e.Fields[7].Value, "..."))
}

func TestReportEmbedTruncates(t *testing.T) {
	r := &types.Report{
		ID:               3,
		PlayerIdentifier: "Griefer99",
		ReporterTag:      "Alex#1234",
		ReportReason:     strings.Repeat("é", 1200),
		AdditionalInfo:   types.OptionalString(strings.Repeat("x", 600)),
	}
	e := notify.ReportEmbed(r, "report-1-abc.mp4", 3*1024*1024/2, now)
	assert.Equal(t, "🚨 New Player Report", e.Title)
	assert.Equal(t, 0xff4444, e.Color)
	assert.Equal(t, "Report ID: 3", e.Footer.Text)
	assert.Equal(t, "File: report-1-abc.mp4\nSize: 1.50 MB", e.Fields[1].Value)

	reason := e.Fields[2].Value
	assert.Equal(t, 1003, utf8.RuneCountInString(reason))
	assert.True(t, strings.HasSuffix(reason, "..."))

	info := e.Fields[len(e.Fields)-1].Value
	assert.Equal(t, 503, utf8.RuneCountInString(info))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", notify.Truncate("abc", 3))
	assert.Equal(t, "ab...", notify.Truncate("abc", 2))
	assert.Equal(t, "", notify.Truncate("", 2))
}
