package db_test

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdl-smp/portal/db"
	"github.com/tdl-smp/portal/types"
)

func newTestService(t *testing.T) *db.Service {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	gdb, err := db.Open(":memory:", log.WithField("origin", "db"))
	require.NoError(t, err)
	svc := db.NewService(gdb)
	require.NoError(t, svc.Migrate())
	t.Cleanup(func() { svc.Close() })
	return svc
}

func newAppeal(minecraftName string) *types.Appeal {
	return &types.Appeal{
		MinecraftUsername: minecraftName,
		DiscordUsername:   "Alex#1234",
		BanType:           types.BanPermanent,
		BanReason:         "griefing",
		BanDate:           "2024-01-01",
		AppealReason:      "I was wrong",
		WhatHappened:      "I broke a house",
		WhyUnban:          "I rebuilt it",
		RulesUnderstood:   true,
		AdditionalInfo:    types.OptionalString("sorry"),
	}
}

func TestInsertAndGetAppealRoundTrip(t *testing.T) {
	svc := newTestService(t)
	in := newAppeal("Steve123")
	in.Status = types.StatusApproved // ignored on insert

	id, err := svc.InsertAppeal(in)
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := svc.GetAppeal(id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Steve123", got.MinecraftUsername)
	assert.Equal(t, "Alex#1234", got.DiscordUsername)
	assert.Equal(t, types.BanPermanent, got.BanType)
	assert.Equal(t, "griefing", got.BanReason)
	assert.Equal(t, "2024-01-01", got.BanDate)
	assert.Equal(t, "I was wrong", got.AppealReason)
	assert.Equal(t, "I broke a house", got.WhatHappened)
	assert.Equal(t, "I rebuilt it", got.WhyUnban)
	assert.True(t, got.RulesUnderstood)
	require.NotNil(t, got.AdditionalInfo)
	assert.Equal(t, "sorry", *got.AdditionalInfo)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.False(t, got.SubmittedAt.IsZero())
	assert.Nil(t, got.ReviewedAt)
	assert.Nil(t, got.ReviewedBy)
}

func TestInsertAppealIDsIncrease(t *testing.T) {
	svc := newTestService(t)
	var last uint
	for i := 0; i < 5; i++ {
		id, err := svc.InsertAppeal(newAppeal("Steve123"))
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
}

func TestGetAppealNotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.GetAppeal(42)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestListAppealsNewestFirst(t *testing.T) {
	svc := newTestService(t)
	first, err := svc.InsertAppeal(newAppeal("first"))
	require.NoError(t, err)
	second, err := svc.InsertAppeal(newAppeal("second"))
	require.NoError(t, err)

	appeals, err := svc.ListAppeals()
	require.NoError(t, err)
	require.Len(t, appeals, 2)
	assert.Equal(t, second, appeals[0].ID)
	assert.Equal(t, first, appeals[1].ID)
}

func TestListAppealsEmpty(t *testing.T) {
	svc := newTestService(t)
	appeals, err := svc.ListAppeals()
	require.NoError(t, err)
	assert.NotNil(t, appeals)
	assert.Empty(t, appeals)
}

func TestUpdateAppealStatus(t *testing.T) {
	svc := newTestService(t)
	id, err := svc.InsertAppeal(newAppeal("Steve123"))
	require.NoError(t, err)
	before, err := svc.GetAppeal(id)
	require.NoError(t, err)

	at := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	updated, err := svc.UpdateAppealStatus(id, types.StatusApproved, "TDLAdmin", at)
	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, updated.Status)
	require.NotNil(t, updated.ReviewedAt)
	assert.True(t, at.Equal(*updated.ReviewedAt))
	require.NotNil(t, updated.ReviewedBy)
	assert.Equal(t, "TDLAdmin", *updated.ReviewedBy)

	// Everything else is untouched
	assert.Equal(t, before.MinecraftUsername, updated.MinecraftUsername)
	assert.Equal(t, before.AppealReason, updated.AppealReason)
	assert.True(t, before.SubmittedAt.Equal(updated.SubmittedAt))
}

func TestUpdateAppealStatusTwiceRefreshesTimestamp(t *testing.T) {
	svc := newTestService(t)
	id, err := svc.InsertAppeal(newAppeal("Steve123"))
	require.NoError(t, err)

	first := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	_, err = svc.UpdateAppealStatus(id, types.StatusDenied, "TDLAdmin", first)
	require.NoError(t, err)
	updated, err := svc.UpdateAppealStatus(id, types.StatusDenied, "TDLAdmin", second)
	require.NoError(t, err)

	assert.Equal(t, types.StatusDenied, updated.Status)
	assert.True(t, second.Equal(*updated.ReviewedAt))
}

func TestUpdateAppealStatusNotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.UpdateAppealStatus(7, types.StatusApproved, "TDLAdmin", time.Now())
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestInsertReport(t *testing.T) {
	svc := newTestService(t)
	id, err := svc.InsertReport(&types.Report{
		PlayerIdentifier: "Griefer99",
		ReporterTag:      "Alex#1234",
		VideoProofPath:   "uploads/report-1-abc.mp4",
		ReportReason:     "x-ray",
		TruthfulReport:   true,
	})
	require.NoError(t, err)

	got, err := svc.GetReport(id)
	require.NoError(t, err)
	assert.Equal(t, "Griefer99", got.PlayerIdentifier)
	assert.Equal(t, "uploads/report-1-abc.mp4", got.VideoProofPath)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Nil(t, got.AdditionalInfo)
}

func TestSessionLifecycle(t *testing.T) {
	svc := newTestService(t)
	now := time.Now()
	require.NoError(t, svc.CreateSession("s1", now.Add(time.Hour)))

	active, err := svc.SessionActive("s1", now)
	require.NoError(t, err)
	assert.True(t, active)

	active, err = svc.SessionActive("unknown", now)
	require.NoError(t, err)
	assert.False(t, active)

	active, err = svc.SessionActive("s1", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, active, "expired session must not be active")

	require.NoError(t, svc.RevokeSession("s1", now))
	active, err = svc.SessionActive("s1", now)
	require.NoError(t, err)
	assert.False(t, active)

	// Revoking twice or an unknown id is harmless
	assert.NoError(t, svc.RevokeSession("s1", now))
	assert.NoError(t, svc.RevokeSession("unknown", now))
}

func TestCreateSessionPrunesExpired(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.CreateSession("old", time.Now().Add(-time.Minute)))
	require.NoError(t, svc.CreateSession("new", time.Now().Add(time.Hour)))

	// The pruned id can be issued again without a primary key conflict
	assert.NoError(t, svc.CreateSession("old", time.Now().Add(time.Hour)))
}
