package notify

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/tdl-smp/portal/types"
)

const (
	appealColor = 0x8B0000
	reportColor = 0xff4444

	// Discord rejects field values over 1024 characters
	fieldLimit        = 1000
	reportReasonLimit = 1000
	reportInfoLimit   = 500
)

// AppealEmbed renders a new appeal for the staff channel
func AppealEmbed(a *types.Appeal, now time.Time) *discordgo.MessageEmbed {
	rules := "❌ No"
	if a.RulesUnderstood {
		rules = "✅ Yes"
	}
	embed := &discordgo.MessageEmbed{
		Title: "⚖️ New Ban Appeal Submitted",
		Color: appealColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "🎯 Minecraft Username", Value: Truncate(a.MinecraftUsername, fieldLimit), Inline: true},
			{Name: "💬 Discord Username", Value: a.DiscordUsername, Inline: true},
			{Name: "🚫 Ban Type", Value: a.BanTypeLabel(), Inline: true},
			{Name: "📅 Ban Date", Value: displayDate(a.BanDate), Inline: true},
			{Name: "❓ Original Ban Reason", Value: Truncate(a.BanReason, fieldLimit)},
			{Name: "📝 Appeal Reason", Value: Truncate(a.AppealReason, fieldLimit)},
			{Name: "📖 What Happened", Value: Truncate(a.WhatHappened, fieldLimit)},
			{Name: "🔄 Why Should You Be Unbanned", Value: Truncate(a.WhyUnban, fieldLimit)},
			{Name: "📋 Rules Understood", Value: rules, Inline: true},
		},
		Timestamp: now.UTC().Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: "Appeal ID: " + strconv.FormatUint(uint64(a.ID), 10)},
	}
	if a.AdditionalInfo != nil && *a.AdditionalInfo != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "💭 Additional Information",
			Value: Truncate(*a.AdditionalInfo, fieldLimit),
		})
	}
	return embed
}

// ReportEmbed renders a new player report. fileName and size describe the
// stored evidence.
func ReportEmbed(r *types.Report, fileName string, size int64, now time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "🚨 New Player Report",
		Color: reportColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "👤 Reported Player", Value: Truncate(r.PlayerIdentifier, fieldLimit), Inline: true},
			{Name: "📹 Video Proof", Value: fmt.Sprintf("File: %s\nSize: %.2f MB", fileName, float64(size)/1024/1024), Inline: true},
			{Name: "📝 Report Details", Value: Truncate(r.ReportReason, reportReasonLimit)},
		},
		Timestamp: now.UTC().Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: "Report ID: " + strconv.FormatUint(uint64(r.ID), 10)},
	}
	if r.ReporterTag != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "🗣️ Reported By",
			Value:  r.ReporterTag,
			Inline: true,
		})
	}
	if r.AdditionalInfo != nil && *r.AdditionalInfo != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "📋 Additional Information",
			Value: Truncate(*r.AdditionalInfo, reportInfoLimit),
		})
	}
	return embed
}

// Truncate cuts s to limit runes and marks the cut with "..."
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

// displayDate renders YYYY-MM-DD as M/D/YYYY, leaving anything else as is
func displayDate(s string) string {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return s
	}
	return t.Format("1/2/2006")
}
