// ABOUTME: Hive operations: listing, creation, deletion, sequenced detail loads, logging, invites, joins and activity
// ABOUTME: Leaderboard loads every hive concurrently before ranking members

package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/venkateshthallam/habithive/internal/aggregate"
	"github.com/venkateshthallam/habithive/internal/apperr"
	"github.com/venkateshthallam/habithive/internal/gateway"
	"github.com/venkateshthallam/habithive/internal/logstore"
	"github.com/venkateshthallam/habithive/internal/model"
)

// maxConcurrentHiveLoads bounds parallel GetHiveDetail calls.
const maxConcurrentHiveLoads = 4

// Backfill bounds for hives created from a habit.
const (
	DefaultBackfillDays = 30
	MaxBackfillDays     = 90
)

// ListHives returns the hives the user belongs to.
func (e *Engine) ListHives(ctx context.Context) ([]model.Hive, error) {
	hives, err := e.gw.ListHives(ctx)
	if err != nil {
		return nil, fmt.Errorf("list hives: %w", err)
	}
	return hives, nil
}

// LoadHive fetches a hive's detail and reconciles it into the store. It
// returns the merged view, which includes pending local rows.
func (e *Engine) LoadHive(ctx context.Context, hiveID string) (model.HiveDetail, error) {
	if hiveID == "" {
		return model.HiveDetail{}, apperr.Validationf("hive_id", "must not be empty")
	}

	seq := e.store.BeginReload(logstore.HiveStream(hiveID))
	detail, err := e.gw.GetHiveDetail(ctx, hiveID)
	if err != nil {
		return model.HiveDetail{}, fmt.Errorf("load hive %s: %w", hiveID, err)
	}
	if !e.store.ReconcileHive(seq, detail) {
		e.logger.Debug("stale hive reload discarded", "hive_id", hiveID, "seq", seq)
	}

	merged, ok := e.store.Hive(hiveID)
	if !ok {
		// Discarded and nothing newer has landed yet.
		return detail, nil
	}
	return merged, nil
}

// CreateHiveFromHabit turns a habit into a hive owned by the user and
// loads it. BackfillDays must be within 0-MaxBackfillDays.
func (e *Engine) CreateHiveFromHabit(ctx context.Context, req model.HiveFromHabitRequest) (model.Hive, error) {
	req.HabitID = strings.TrimSpace(req.HabitID)
	req.Name = strings.TrimSpace(req.Name)
	if req.HabitID == "" {
		return model.Hive{}, apperr.Validationf("habit_id", "must not be empty")
	}
	if req.BackfillDays < 0 || req.BackfillDays > MaxBackfillDays {
		return model.Hive{}, apperr.Validationf("backfill_days", "must be within 0-%d, got %d", MaxBackfillDays, req.BackfillDays)
	}

	hive, err := e.gw.CreateHiveFromHabit(ctx, req)
	if err != nil {
		return model.Hive{}, fmt.Errorf("create hive: %w", err)
	}
	e.logger.Info("hive created", "hive_id", hive.ID, "habit_id", req.HabitID, "backfill_days", req.BackfillDays)
	if _, err := e.LoadHive(ctx, hive.ID); err != nil {
		e.logger.Warn("created hive but could not load it", "hive_id", hive.ID, "error", err)
	}
	return hive, nil
}

// DeleteHive deletes a hive on the server and drops it from the store.
// Only the owner may delete; the server's refusal is returned unchanged.
func (e *Engine) DeleteHive(ctx context.Context, hiveID string) error {
	if hiveID == "" {
		return apperr.Validationf("hive_id", "must not be empty")
	}
	if err := e.gw.DeleteHive(ctx, hiveID); err != nil {
		return fmt.Errorf("delete hive %s: %w", hiveID, err)
	}
	e.store.RemoveHive(hiveID)
	e.logger.Info("hive deleted", "hive_id", hiveID)
	return nil
}

// ActivityFeed returns recent events across the user's hives, or one hive
// when hiveID is set. limit is clamped to 1-100 with 50 for non-positive.
func (e *Engine) ActivityFeed(ctx context.Context, hiveID string, limit int) ([]model.ActivityEvent, error) {
	if limit <= 0 {
		limit = gateway.DefaultActivityLimit
	}
	limit = min(limit, gateway.MaxActivityLimit)

	events, err := e.gw.ActivityFeed(ctx, hiveID, limit)
	if err != nil {
		return nil, fmt.Errorf("activity feed: %w", err)
	}
	return events, nil
}

// LogHiveToday records the signed-in user's value for today in a hive,
// loading the hive first if the store has not seen it.
func (e *Engine) LogHiveToday(ctx context.Context, hiveID string, value int) (*logstore.Mutation, error) {
	userID := e.session.UserID()
	if userID == "" {
		return nil, fmt.Errorf("log hive day: %w", apperr.ErrUnauthorized)
	}
	if _, ok := e.store.Hive(hiveID); !ok {
		if _, err := e.LoadHive(ctx, hiveID); err != nil {
			return nil, err
		}
	}

	m, err := e.store.ApplyHiveDay(hiveID, userID, e.Today(), value)
	if err != nil {
		return nil, err
	}

	row, err := e.gw.LogHiveDay(ctx, hiveID, value)
	if err == nil {
		err = e.store.ConfirmHiveDay(m, row)
	}
	if err != nil {
		return m, e.store.RollbackHiveDay(m, err)
	}
	return m, nil
}

// JoinHive redeems an invite code and loads the joined hive.
func (e *Engine) JoinHive(ctx context.Context, code string) (model.JoinResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return model.JoinResult{}, apperr.Validationf("code", "must not be empty")
	}

	res, err := e.gw.JoinHive(ctx, code)
	if err != nil {
		return model.JoinResult{}, fmt.Errorf("join hive: %w", err)
	}
	if res.Success && res.HiveID != "" {
		if _, err := e.LoadHive(ctx, res.HiveID); err != nil {
			e.logger.Warn("joined hive but could not load it", "hive_id", res.HiveID, "error", err)
		}
	}
	return res, nil
}

// CreateInvite issues an invite code for a hive. Zero ttl or maxUses use
// the server defaults.
func (e *Engine) CreateInvite(ctx context.Context, hiveID string, ttl time.Duration, maxUses int) (model.Invite, error) {
	if hiveID == "" {
		return model.Invite{}, apperr.Validationf("hive_id", "must not be empty")
	}
	if ttl < 0 {
		return model.Invite{}, apperr.Validationf("ttl", "must not be negative")
	}
	if maxUses < 0 {
		return model.Invite{}, apperr.Validationf("max_uses", "must not be negative")
	}

	inv, err := e.gw.CreateHiveInvite(ctx, hiveID, ttl, maxUses)
	if err != nil {
		return model.Invite{}, fmt.Errorf("create invite: %w", err)
	}
	return inv, nil
}

// HiveStatus summarizes today for a hive already in the store.
func (e *Engine) HiveStatus(hiveID string) (aggregate.HiveTodayStatus, error) {
	detail, ok := e.store.Hive(hiveID)
	if !ok {
		return aggregate.HiveTodayStatus{}, apperr.Validationf("hive_id", "hive %q not loaded", hiveID)
	}
	return aggregate.ComputeHiveTodayStatus(detail.Members, detail.MemberDays, e.Today(), detail.Target), nil
}

// Leaderboard loads every hive the user belongs to and ranks members by
// hives completed today. A non-positive limit uses the configured size.
func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]aggregate.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = e.leaderboardSize
	}

	hives, err := e.ListHives(ctx)
	if err != nil {
		return nil, err
	}

	details := make([]model.HiveDetail, len(hives))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentHiveLoads)
	for i, h := range hives {
		g.Go(func() error {
			d, err := e.LoadHive(gctx, h.ID)
			if err != nil {
				return err
			}
			details[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	return aggregate.ComputeLeaderboard(details, e.Today(), limit), nil
}
