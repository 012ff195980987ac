// ABOUTME: Engine wires user actions through the local store, the gateway and the session
// ABOUTME: Applies optimistically, confirms or rolls back with the server result, and derives views

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/venkateshthallam/habithive/internal/apperr"
	"github.com/venkateshthallam/habithive/internal/daykey"
	"github.com/venkateshthallam/habithive/internal/gateway"
	"github.com/venkateshthallam/habithive/internal/logstore"
	"github.com/venkateshthallam/habithive/internal/model"
	"github.com/venkateshthallam/habithive/internal/session"
)

// DefaultHistoryDays is how many days of logs Reload requests.
const DefaultHistoryDays = 60

// Options configures an Engine. Gateway, Session and Store are required.
type Options struct {
	Gateway  gateway.Gateway
	Session  *session.Manager
	Store    *logstore.Store
	Calendar daykey.Calendar
	// Now defaults to time.Now.
	Now func() time.Time

	HistoryDays     int
	HeatmapWeeks    int
	LeaderboardSize int

	Logger *slog.Logger
}

// Engine is the single entry point for front ends. It is safe for
// concurrent use; per-key ordering is enforced by the store.
type Engine struct {
	gw      gateway.Gateway
	session *session.Manager
	store   *logstore.Store
	now     func() time.Time

	// calendar starts from the configuration and follows the profile once
	// one is loaded.
	calMu    sync.RWMutex
	calendar daykey.Calendar
	profile  *model.Profile

	historyDays     int
	heatmapWeeks    int
	leaderboardSize int

	logger *slog.Logger
}

// New creates an Engine and registers a logout hook that clears the store.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	historyDays := opts.HistoryDays
	if historyDays <= 0 {
		historyDays = DefaultHistoryDays
	}

	e := &Engine{
		gw:              opts.Gateway,
		session:         opts.Session,
		store:           opts.Store,
		calendar:        opts.Calendar,
		now:             now,
		historyDays:     historyDays,
		heatmapWeeks:    opts.HeatmapWeeks,
		leaderboardSize: opts.LeaderboardSize,
		logger:          logger.With("component", "engine"),
	}
	configured := opts.Calendar
	e.session.OnLogout(func() {
		e.logger.Info("session ended, clearing local state")
		e.store.Reset()
		e.calMu.Lock()
		e.calendar = configured
		e.profile = nil
		e.calMu.Unlock()
	})
	return e
}

// Calendar returns the calendar currently used to decide "today".
func (e *Engine) Calendar() daykey.Calendar {
	e.calMu.RLock()
	defer e.calMu.RUnlock()
	return e.calendar
}

// Today is the viewer's current day.
func (e *Engine) Today() daykey.Key {
	return e.Calendar().Today(e.now())
}

// Store exposes the local store for subscriptions and snapshots.
func (e *Engine) Store() *logstore.Store {
	return e.store
}

// SendOTP asks the server to text a one-time code to phone.
func (e *Engine) SendOTP(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return apperr.Validationf("phone", "must not be empty")
	}
	if err := e.gw.SendOTP(ctx, phone); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	return nil
}

// SignIn exchanges cred for tokens and installs the session. Local state
// from any previous session is discarded.
func (e *Engine) SignIn(ctx context.Context, cred gateway.Credential) (session.Session, error) {
	tokens, err := e.gw.Authenticate(ctx, cred)
	if err != nil {
		return session.Session{}, fmt.Errorf("sign in: %w", err)
	}

	e.store.Reset()
	if err := e.session.ApplyAuthResult(tokens); err != nil {
		return session.Session{}, fmt.Errorf("sign in: %w", err)
	}

	sess, _ := e.session.Current()
	e.logger.Info("signed in", "user_id", sess.UserID)

	if _, err := e.Profile(ctx); err != nil {
		e.logger.Warn("profile not loaded, keeping configured calendar", "error", err)
	}
	return sess, nil
}

// SignOut clears the session; the logout hook clears the store.
func (e *Engine) SignOut() {
	e.session.Logout()
}

// Reload fetches habits with recent logs and reconciles them into the
// store. A response overtaken by a newer reload is dropped silently.
func (e *Engine) Reload(ctx context.Context) error {
	seq := e.store.BeginReload(logstore.StreamHabits)
	habits, err := e.gw.ListHabits(ctx, true, e.historyDays)
	if err != nil {
		return fmt.Errorf("reload habits: %w", err)
	}
	if !e.store.Reconcile(seq, habits) {
		e.logger.Debug("stale habit reload discarded", "seq", seq)
	}
	return nil
}

// ToggleToday checks a habit off for today, or clears today's entry when
// one exists. A zero value logs 1 for checkbox habits and the target for
// counters. The returned mutation is settled: confirmed on success, rolled
// back on failure. Failed mutations are not retried.
func (e *Engine) ToggleToday(ctx context.Context, habitID string, value int) (*logstore.Mutation, error) {
	if value == 0 {
		value = e.defaultValue(habitID)
	}
	m, err := e.store.Apply(habitID, e.Today(), value)
	if err != nil {
		return nil, err
	}

	switch m.Kind {
	case logstore.KindDelete:
		day := m.Day
		err = e.gw.DeleteHabitLog(ctx, habitID, &day)
		if err == nil {
			err = e.store.Confirm(m, model.LogEntry{})
		}
	default:
		var entry model.LogEntry
		entry, err = e.gw.LogHabit(ctx, habitID, m.Value)
		if err == nil {
			err = e.store.Confirm(m, entry)
		}
	}
	if err != nil {
		return m, e.store.Rollback(m, err)
	}
	return m, nil
}

// LogToday sets today's value for a habit, creating or overwriting the
// entry. Counters use this to record progress toward their target.
func (e *Engine) LogToday(ctx context.Context, habitID string, value int) (*logstore.Mutation, error) {
	m, err := e.store.Set(habitID, e.Today(), value)
	if err != nil {
		return nil, err
	}

	entry, err := e.gw.LogHabit(ctx, habitID, value)
	if err == nil {
		err = e.store.Confirm(m, entry)
	}
	if err != nil {
		return m, e.store.Rollback(m, err)
	}
	return m, nil
}

func (e *Engine) defaultValue(habitID string) int {
	h, ok := e.store.Habit(habitID)
	if ok && h.Type == model.HabitTypeCounter {
		return h.Target()
	}
	return 1
}

// CreateHabit validates req, creates the habit on the server and adds it
// to the store.
func (e *Engine) CreateHabit(ctx context.Context, req model.CreateHabitRequest) (model.Habit, error) {
	req, err := NormalizeHabitRequest(req)
	if err != nil {
		return model.Habit{}, err
	}

	h, err := e.gw.CreateHabit(ctx, req)
	if err != nil {
		return model.Habit{}, fmt.Errorf("create habit: %w", err)
	}
	if err := e.store.AddHabit(h); err != nil {
		return model.Habit{}, fmt.Errorf("create habit: %w", err)
	}
	e.logger.Info("habit created", "habit_id", h.ID, "name", h.Name)
	return h, nil
}

// DeleteHabit removes a habit and its entries locally, then on the server.
// The habit is restored if the server refuses.
func (e *Engine) DeleteHabit(ctx context.Context, habitID string) error {
	r, err := e.store.RemoveHabit(habitID)
	if err != nil {
		return err
	}
	if err := e.gw.DeleteHabit(ctx, habitID); err != nil {
		e.store.RestoreHabit(r)
		e.logger.Warn("habit delete failed, restored", "habit_id", habitID, "error", err)
		return fmt.Errorf("delete habit %s: %w", habitID, err)
	}
	e.store.CommitRemoval(r)
	return nil
}
