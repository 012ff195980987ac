// ABOUTME: Tests for hive loading, logging, creation, deletion, invites, joins, activity and the leaderboard
// ABOUTME: Uses the in-memory gateway seeded with hives the test user belongs to

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venkateshthallam/habithive/internal/aggregate"
	"github.com/venkateshthallam/habithive/internal/apperr"
	"github.com/venkateshthallam/habithive/internal/gateway"
	"github.com/venkateshthallam/habithive/internal/logstore"
	"github.com/venkateshthallam/habithive/internal/model"
)

func runnersHive() model.HiveDetail {
	return model.HiveDetail{
		Hive: model.Hive{ID: "hv1", Name: "Runners", Type: model.HabitTypeCheckbox, TargetPerDay: 1},
		Members: []model.HiveMember{
			{HiveID: "hv1", UserID: "u1", DisplayName: "Me"},
			{HiveID: "hv1", UserID: "u2", DisplayName: "Bea"},
			{HiveID: "hv1", UserID: "u3", DisplayName: "Cal"},
		},
		MemberDays: []model.HiveMemberDay{
			{HiveID: "hv1", UserID: "u3", Day: today, Value: 1, Done: true},
		},
	}
}

func TestLogHiveToday(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	f.gw.SeedHive(runnersHive())

	// The hive is loaded on demand.
	m, err := f.eng.LogHiveToday(context.Background(), "hv1", 1)
	require.NoError(t, err)
	assert.Equal(t, logstore.StateConfirmed, m.State())
	assert.Equal(t, 1, f.gw.Calls("GetHiveDetail"))

	status, err := f.eng.HiveStatus("hv1")
	require.NoError(t, err)
	assert.Equal(t, 2, status.Completed)
	assert.Equal(t, 0, status.Partial)
	assert.Equal(t, 1, status.Pending)
	assert.Equal(t, 67, status.RoundedRate())
	assert.Equal(t, aggregate.StatusCompleted, status.StatusOf("u1"))

	// A fresh load agrees with the confirmed local state.
	detail, err := f.eng.LoadHive(context.Background(), "hv1")
	require.NoError(t, err)
	assert.Len(t, detail.MemberDays, 2)
}

func TestLogHiveToday_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	f.gw.SeedHive(runnersHive())
	_, err := f.eng.LoadHive(context.Background(), "hv1")
	require.NoError(t, err)

	f.gw.Before = func(_ context.Context, op string) error {
		if op == "LogHiveDay" {
			return &apperr.ServerError{Status: 403, Message: "Not a member of this hive"}
		}
		return nil
	}
	m, err := f.eng.LogHiveToday(context.Background(), "hv1", 1)
	var se *apperr.ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 403, se.Status)
	assert.Equal(t, logstore.StateRolledBack, m.State())

	status, err := f.eng.HiveStatus("hv1")
	require.NoError(t, err)
	assert.Equal(t, aggregate.StatusPending, status.StatusOf("u1"))
}

func TestLogHiveToday_RequiresSession(t *testing.T) {
	f := newFixture(t)
	f.gw.SeedHive(runnersHive())

	_, err := f.eng.LogHiveToday(context.Background(), "hv1", 1)
	assert.True(t, apperr.IsUnauthorized(err))
	assert.Equal(t, 0, f.gw.Calls("LogHiveDay"))
}

func TestHiveStatus_NotLoaded(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.HiveStatus("hv1")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestInviteAndJoin(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	f.gw.SeedHive(model.HiveDetail{
		Hive:    model.Hive{ID: "hv2", Name: "Readers", TargetPerDay: 1},
		Members: []model.HiveMember{{HiveID: "hv2", UserID: "owner", DisplayName: "Owner"}},
	})

	_, err := f.eng.CreateInvite(context.Background(), "", 0, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.eng.CreateInvite(context.Background(), "hv2", 0, -1)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	inv, err := f.eng.CreateInvite(context.Background(), "hv2", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "hv2", inv.HiveID)
	assert.Equal(t, gateway.DefaultInviteMaxUses, inv.MaxUses)
	assert.Equal(t, testNow.Add(gateway.DefaultInviteTTL), inv.ExpiresAt)

	_, err = f.eng.JoinHive(context.Background(), "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	res, err := f.eng.JoinHive(context.Background(), "  "+inv.Code+"\n")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "hv2", res.HiveID)

	detail, ok := f.store.Hive("hv2")
	require.True(t, ok, "joined hive is loaded")
	assert.Len(t, detail.Members, 2)

	hives, err := f.eng.ListHives(context.Background())
	require.NoError(t, err)
	require.Len(t, hives, 1)
	assert.Equal(t, "Readers", hives[0].Name)

	res, err = f.eng.JoinHive(context.Background(), inv.Code)
	require.NoError(t, err)
	assert.Equal(t, "Already a member", res.Message)
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	f.gw.SeedHive(model.HiveDetail{
		Hive: model.Hive{ID: "hvA", Name: "A", TargetPerDay: 1},
		Members: []model.HiveMember{
			{UserID: "u1", DisplayName: "Me"},
			{UserID: "u2", DisplayName: "Bea"},
		},
		MemberDays: []model.HiveMemberDay{{UserID: "u2", Day: today, Value: 1}},
	})
	f.gw.SeedHive(model.HiveDetail{
		Hive: model.Hive{ID: "hvB", Name: "B", TargetPerDay: 2},
		Members: []model.HiveMember{
			{UserID: "u1", DisplayName: "Me"},
			{UserID: "u3", DisplayName: "Cal"},
		},
		MemberDays: []model.HiveMemberDay{
			{UserID: "u1", Day: today, Value: 2},
			{UserID: "u3", Day: today, Value: 1},
			{UserID: "u3", Day: today.AddDays(-1), Value: 2},
		},
	})

	board, err := f.eng.Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, aggregate.LeaderboardEntry{UserID: "u2", DisplayName: "Bea", CompletedToday: 1, TotalHives: 1}, board[0])
	assert.Equal(t, aggregate.LeaderboardEntry{UserID: "u1", DisplayName: "Me", CompletedToday: 1, TotalHives: 2}, board[1])
	assert.Equal(t, "u3", board[2].UserID)
	assert.Equal(t, 2, f.gw.Calls("GetHiveDetail"))

	board, err = f.eng.Leaderboard(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, board, 2)
}

func TestLeaderboard_PropagatesLoadFailure(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	f.gw.SeedHive(runnersHive())

	boom := errors.New("boom")
	f.gw.Before = func(_ context.Context, op string) error {
		if op == "GetHiveDetail" {
			return boom
		}
		return nil
	}
	_, err := f.eng.Leaderboard(context.Background(), 5)
	assert.ErrorIs(t, err, boom)
}

func TestCreateHiveFromHabit(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	f.seedHabit(t, model.Habit{ID: "h1", Name: "Water", Type: model.HabitTypeCounter, TargetPerDay: 8, ColorHex: "#34C759"},
		model.LogEntry{Day: today, Value: 8},
		model.LogEntry{Day: today.AddDays(-3), Value: 2},
		model.LogEntry{Day: today.AddDays(-40), Value: 8},
	)

	for _, req := range []model.HiveFromHabitRequest{
		{HabitID: "  "},
		{HabitID: "h1", BackfillDays: -1},
		{HabitID: "h1", BackfillDays: MaxBackfillDays + 1},
	} {
		_, err := f.eng.CreateHiveFromHabit(context.Background(), req)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	}
	assert.Equal(t, 0, f.gw.Calls("CreateHiveFromHabit"))

	hive, err := f.eng.CreateHiveFromHabit(context.Background(), model.HiveFromHabitRequest{HabitID: "h1", BackfillDays: DefaultBackfillDays})
	require.NoError(t, err)
	assert.Equal(t, "Water", hive.Name)
	assert.Equal(t, "u1", hive.OwnerID)
	assert.Equal(t, model.HabitTypeCounter, hive.Type)
	assert.Equal(t, "#34C759", hive.ColorHex)

	detail, ok := f.store.Hive(hive.ID)
	require.True(t, ok, "created hive is loaded")
	assert.Equal(t, 8, detail.Target)
	require.Len(t, detail.Members, 1)
	assert.Equal(t, "owner", detail.Members[0].Role)
	// The 40-day-old entry is outside the backfill window.
	require.Len(t, detail.MemberDays, 2)
	assert.Equal(t, today.AddDays(-3), detail.MemberDays[0].Day)

	status, err := f.eng.HiveStatus(hive.ID)
	require.NoError(t, err)
	assert.Equal(t, aggregate.StatusCompleted, status.StatusOf("u1"))

	named, err := f.eng.CreateHiveFromHabit(context.Background(), model.HiveFromHabitRequest{HabitID: "h1", Name: " Hydration "})
	require.NoError(t, err)
	assert.Equal(t, "Hydration", named.Name)
	detail, ok = f.store.Hive(named.ID)
	require.True(t, ok)
	assert.Empty(t, detail.MemberDays, "no backfill requested")
}

func TestDeleteHive(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	others := runnersHive()
	others.Hive.OwnerID = "u2"
	f.gw.SeedHive(others)
	_, err := f.eng.LoadHive(context.Background(), "hv1")
	require.NoError(t, err)

	err = f.eng.DeleteHive(context.Background(), "hv1")
	var se *apperr.ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 403, se.Status)
	_, ok := f.store.Hive("hv1")
	assert.True(t, ok, "refused delete leaves the hive")

	f.seedHabit(t, model.Habit{ID: "h1", Name: "Read"})
	mine, err := f.eng.CreateHiveFromHabit(context.Background(), model.HiveFromHabitRequest{HabitID: "h1"})
	require.NoError(t, err)

	require.NoError(t, f.eng.DeleteHive(context.Background(), mine.ID))
	_, ok = f.store.Hive(mine.ID)
	assert.False(t, ok)

	hives, err := f.eng.ListHives(context.Background())
	require.NoError(t, err)
	require.Len(t, hives, 1)
	assert.Equal(t, "hv1", hives[0].ID)

	assert.ErrorIs(t, f.eng.DeleteHive(context.Background(), ""), apperr.ErrValidation)
}

func TestActivityFeed(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	f.gw.SeedHive(runnersHive())
	f.gw.SeedHive(model.HiveDetail{
		Hive:    model.Hive{ID: "hv9", Name: "Strangers", TargetPerDay: 1},
		Members: []model.HiveMember{{HiveID: "hv9", UserID: "u7"}},
	})
	f.gw.SeedActivity(
		model.ActivityEvent{ActorID: "u2", HiveID: "hv1", Type: model.ActivityHiveJoined, CreatedAt: testNow.Add(-2 * time.Hour)},
		model.ActivityEvent{ActorID: "u3", HiveID: "hv1", Type: model.ActivityHabitCompleted, CreatedAt: testNow.Add(-time.Hour)},
		model.ActivityEvent{ActorID: "u7", HiveID: "hv9", Type: model.ActivityHabitCompleted, CreatedAt: testNow.Add(-time.Hour)},
	)

	events, err := f.eng.ActivityFeed(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, events, 2, "only hives the user belongs to")
	assert.Equal(t, "u3", events[0].ActorID)
	assert.Equal(t, "u2", events[1].ActorID)

	events, err = f.eng.ActivityFeed(context.Background(), "hv1", 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.ActivityHabitCompleted, events[0].Type)

	// Completing today shows up first in the hive's recent activity.
	_, err = f.eng.LogHiveToday(context.Background(), "hv1", 1)
	require.NoError(t, err)
	detail, err := f.eng.LoadHive(context.Background(), "hv1")
	require.NoError(t, err)
	require.Len(t, detail.RecentActivity, 3)
	assert.Equal(t, "u1", detail.RecentActivity[0].ActorID)
	assert.Equal(t, model.ActivityHabitCompleted, detail.RecentActivity[0].Type)
}
