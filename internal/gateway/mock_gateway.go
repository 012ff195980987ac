// ABOUTME: In-memory Gateway implementation for testing
// ABOUTME: Allows engine tests to run without an HTTP server

package gateway

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/venkateshthallam/habithive/internal/apperr"
	"github.com/venkateshthallam/habithive/internal/daykey"
	"github.com/venkateshthallam/habithive/internal/model"
	"github.com/venkateshthallam/habithive/internal/session"
)

// MockOTP is the only code MockGateway accepts.
const MockOTP = "123456"

const (
	maxBackfillDays    = 90
	hiveRecentActivity = 20
)

// MockGateway is an in-memory Gateway for testing. Set Before to inject
// failures or block a call; it runs before every operation with the
// operation's method name.
type MockGateway struct {
	mu         sync.RWMutex
	userID     string
	phone      string
	habits     map[string]*model.Habit                  // keyed by habit ID
	logs       map[string]map[daykey.Key]model.LogEntry // habitID -> day -> entry
	hives      map[string]*model.HiveDetail             // keyed by hive ID
	invites    map[string]*model.Invite                 // keyed by code
	refreshes  map[string]string                        // refresh token -> user ID
	profile    *model.Profile
	activity   []model.ActivityEvent
	calls      map[string]int
	tokenCount int

	// Now supplies the server clock; Calendar turns it into "today".
	Now      func() time.Time
	Calendar daykey.Calendar
	// TokenTTL is reported as expires_in on issued tokens. Zero omits it.
	TokenTTL time.Duration
	// Before, when set, runs before every operation. A non-nil error is
	// returned instead of performing the operation.
	Before func(ctx context.Context, op string) error
}

// NewMockGateway creates a MockGateway for userID.
func NewMockGateway(userID string) *MockGateway {
	return &MockGateway{
		userID:    userID,
		habits:    make(map[string]*model.Habit),
		logs:      make(map[string]map[daykey.Key]model.LogEntry),
		hives:     make(map[string]*model.HiveDetail),
		invites:   make(map[string]*model.Invite),
		refreshes: make(map[string]string),
		calls:     make(map[string]int),
		Now:       time.Now,
		Calendar:  daykey.Calendar{Location: time.UTC},
		TokenTTL:  time.Hour,
	}
}

// Calls returns how many times op has been invoked.
func (m *MockGateway) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

func (m *MockGateway) enter(ctx context.Context, op string) error {
	m.mu.Lock()
	m.calls[op]++
	before := m.Before
	m.mu.Unlock()

	if before != nil {
		if err := before(ctx, op); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return &apperr.NetworkError{Op: op, Err: err}
	}
	return nil
}

func (m *MockGateway) today() daykey.Key {
	return m.Calendar.Today(m.Now())
}

func (m *MockGateway) issueLocked(userID string) session.Tokens {
	m.tokenCount++
	refresh := "mock-refresh-" + strconv.Itoa(m.tokenCount)
	m.refreshes[refresh] = userID
	return session.Tokens{
		AccessToken:  "mock-access-" + strconv.Itoa(m.tokenCount),
		RefreshToken: refresh,
		UserID:       userID,
		ExpiresIn:    m.TokenTTL,
	}
}

// SendOTP accepts any phone number.
func (m *MockGateway) SendOTP(ctx context.Context, phone string) error {
	if err := m.enter(ctx, "SendOTP"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phone = phone
	return nil
}

// Authenticate accepts MockOTP for any phone, or any Apple identity token.
func (m *MockGateway) Authenticate(ctx context.Context, cred Credential) (session.Tokens, error) {
	if err := m.enter(ctx, "Authenticate"); err != nil {
		return session.Tokens{}, err
	}
	if !cred.IsApple() && cred.OTP != MockOTP {
		return session.Tokens{}, &apperr.ServerError{Status: 400, Message: "Failed to verify OTP"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issueLocked(m.userID), nil
}

// RefreshToken rotates a refresh token issued by this mock.
func (m *MockGateway) RefreshToken(ctx context.Context, refreshToken string) (session.Tokens, error) {
	if err := m.enter(ctx, "RefreshToken"); err != nil {
		return session.Tokens{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.refreshes[refreshToken]
	if !ok {
		return session.Tokens{}, &apperr.ServerError{Status: 400, Message: "Failed to refresh token"}
	}
	delete(m.refreshes, refreshToken)
	return m.issueLocked(userID), nil
}

// RevokeRefreshTokens invalidates every outstanding refresh token.
func (m *MockGateway) RevokeRefreshTokens() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes = make(map[string]string)
}

// profileLocked returns the mock user's profile, creating the default one
// from the mock's calendar on first use.
func (m *MockGateway) profileLocked() *model.Profile {
	if m.profile == nil {
		tz := "UTC"
		if m.Calendar.Location != nil {
			tz = m.Calendar.Location.String()
		}
		now := m.Now()
		m.profile = &model.Profile{
			ID:           m.userID,
			DisplayName:  "New Bee",
			Timezone:     tz,
			DayStartHour: m.Calendar.DayStartHour,
			Theme:        model.ThemeHoney,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	return m.profile
}

// SeedProfile replaces the mock user's profile.
func (m *MockGateway) SeedProfile(p model.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = m.userID
	}
	m.profile = &p
}

// GetProfile returns the mock user's profile.
func (m *MockGateway) GetProfile(ctx context.Context) (model.Profile, error) {
	if err := m.enter(ctx, "GetProfile"); err != nil {
		return model.Profile{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.profileLocked(), nil
}

// UpdateProfile applies the set fields of upd.
func (m *MockGateway) UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (model.Profile, error) {
	if err := m.enter(ctx, "UpdateProfile"); err != nil {
		return model.Profile{}, err
	}
	if upd.DayStartHour != nil && (*upd.DayStartHour < 0 || *upd.DayStartHour > 23) {
		return model.Profile{}, &apperr.ServerError{Status: 422, Message: "day_start_hour must be between 0 and 23"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profileLocked()
	if upd.DisplayName != nil {
		p.DisplayName = *upd.DisplayName
	}
	if upd.AvatarURL != nil {
		p.AvatarURL = *upd.AvatarURL
	}
	if upd.Timezone != nil {
		p.Timezone = *upd.Timezone
	}
	if upd.DayStartHour != nil {
		p.DayStartHour = *upd.DayStartHour
	}
	if upd.Theme != nil {
		p.Theme = *upd.Theme
	}
	p.UpdatedAt = m.Now()
	return *p, nil
}

// SeedHabit stores a habit and its logs directly.
func (m *MockGateway) SeedHabit(habit model.Habit, logs ...model.LogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := habit
	if h.OwnerID == "" {
		h.OwnerID = m.userID
	}
	m.habits[h.ID] = &h
	if m.logs[h.ID] == nil {
		m.logs[h.ID] = make(map[daykey.Key]model.LogEntry)
	}
	for _, entry := range logs {
		entry.HabitID = h.ID
		if entry.ServerID == "" {
			entry.ServerID = uuid.NewString()
		}
		m.logs[h.ID][entry.Day] = entry
	}
}

// ListHabits returns active habits, with logs from the last sinceDays days.
func (m *MockGateway) ListHabits(ctx context.Context, includeLogs bool, sinceDays int) ([]model.HabitWithLogs, error) {
	if err := m.enter(ctx, "ListHabits"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := daykey.Key("")
	if sinceDays > 0 {
		cutoff = m.today().AddDays(-sinceDays)
	}

	result := make([]model.HabitWithLogs, 0, len(m.habits))
	for _, h := range m.habits {
		if !h.IsActive {
			continue
		}
		hw := model.HabitWithLogs{Habit: *h}
		if includeLogs {
			for _, entry := range m.logs[h.ID] {
				if !cutoff.IsZero() && entry.Day.Before(cutoff) {
					continue
				}
				hw.Logs = append(hw.Logs, entry)
			}
			sort.Slice(hw.Logs, func(i, j int) bool { return hw.Logs[i].Day.Before(hw.Logs[j].Day) })
		}
		result = append(result, hw)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Habit.CreatedAt.Before(result[j].Habit.CreatedAt) })
	return result, nil
}

// CreateHabit stores a new active habit.
func (m *MockGateway) CreateHabit(ctx context.Context, req model.CreateHabitRequest) (model.Habit, error) {
	if err := m.enter(ctx, "CreateHabit"); err != nil {
		return model.Habit{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	h := model.Habit{
		ID:            uuid.NewString(),
		OwnerID:       m.userID,
		Name:          req.Name,
		Emoji:         req.Emoji,
		Type:          req.Type,
		TargetPerDay:  max(req.TargetPerDay, 1),
		ColorHex:      req.ColorHex,
		ScheduleDaily: req.ScheduleDaily,
		ScheduleMask:  req.ScheduleMask,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.habits[h.ID] = &h
	m.logs[h.ID] = make(map[daykey.Key]model.LogEntry)
	return h, nil
}

// DeleteHabit removes a habit and its logs.
func (m *MockGateway) DeleteHabit(ctx context.Context, habitID string) error {
	if err := m.enter(ctx, "DeleteHabit"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.habits[habitID]; !ok {
		return &apperr.ServerError{Status: 404, Message: "Habit not found"}
	}
	delete(m.habits, habitID)
	delete(m.logs, habitID)
	return nil
}

// LogHabit upserts today's entry for a habit.
func (m *MockGateway) LogHabit(ctx context.Context, habitID string, value int) (model.LogEntry, error) {
	if err := m.enter(ctx, "LogHabit"); err != nil {
		return model.LogEntry{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.habits[habitID]; !ok {
		return model.LogEntry{}, &apperr.ServerError{Status: 404, Message: "Habit not found"}
	}

	now := m.Now()
	day := m.today()
	entry, ok := m.logs[habitID][day]
	if !ok {
		entry = model.LogEntry{
			HabitID:   habitID,
			Day:       day,
			Source:    model.SourceApp,
			ServerID:  uuid.NewString(),
			CreatedAt: &now,
		}
	}
	entry.Value = value
	m.logs[habitID][day] = entry
	return entry, nil
}

// DeleteHabitLog removes the entry for day, or today's when day is nil.
func (m *MockGateway) DeleteHabitLog(ctx context.Context, habitID string, day *daykey.Key) error {
	if err := m.enter(ctx, "DeleteHabitLog"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	target := m.today()
	if day != nil {
		target = *day
	}
	delete(m.logs[habitID], target)
	return nil
}

// SeedHive stores a hive detail directly.
func (m *MockGateway) SeedHive(detail model.HiveDetail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := cloneHiveDetail(detail)
	if d.Target == 0 {
		d.Target = max(d.Hive.TargetPerDay, 1)
	}
	d.Hive.MemberCount = len(d.Members)
	m.hives[d.Hive.ID] = &d
}

func cloneHiveDetail(d model.HiveDetail) model.HiveDetail {
	out := d
	out.Members = append([]model.HiveMember(nil), d.Members...)
	out.MemberDays = append([]model.HiveMemberDay(nil), d.MemberDays...)
	out.RecentActivity = append([]model.ActivityEvent(nil), d.RecentActivity...)
	return out
}

// SeedActivity appends feed events directly.
func (m *MockGateway) SeedActivity(events ...model.ActivityEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		m.activity = append(m.activity, ev)
	}
}

func (m *MockGateway) recordLocked(hiveID string, kind model.ActivityType, data map[string]any) {
	m.activity = append(m.activity, model.ActivityEvent{
		ID:        uuid.NewString(),
		ActorID:   m.userID,
		HiveID:    hiveID,
		Type:      kind,
		Data:      data,
		CreatedAt: m.Now(),
		ActorName: m.profileLocked().DisplayName,
	})
}

// feedLocked returns matching events newest first, at most limit.
func (m *MockGateway) feedLocked(match func(model.ActivityEvent) bool, limit int) []model.ActivityEvent {
	var events []model.ActivityEvent
	for _, ev := range m.activity {
		if match(ev) {
			events = append(events, ev)
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })
	if len(events) > limit {
		events = events[:limit]
	}
	return events
}

func (m *MockGateway) isMemberLocked(hive *model.HiveDetail) bool {
	for _, member := range hive.Members {
		if member.UserID == m.userID {
			return true
		}
	}
	return false
}

// ListHives returns the hives the mock user belongs to, sorted by name.
func (m *MockGateway) ListHives(ctx context.Context) ([]model.Hive, error) {
	if err := m.enter(ctx, "ListHives"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	hives := make([]model.Hive, 0, len(m.hives))
	for _, d := range m.hives {
		if m.isMemberLocked(d) {
			hives = append(hives, d.Hive)
		}
	}
	sort.Slice(hives, func(i, j int) bool { return hives[i].Name < hives[j].Name })
	return hives, nil
}

// GetHiveDetail returns a copy of a hive.
func (m *MockGateway) GetHiveDetail(ctx context.Context, hiveID string) (model.HiveDetail, error) {
	if err := m.enter(ctx, "GetHiveDetail"); err != nil {
		return model.HiveDetail{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.hives[hiveID]
	if !ok || !m.isMemberLocked(d) {
		return model.HiveDetail{}, &apperr.ServerError{Status: 404, Message: "Hive not found"}
	}
	out := cloneHiveDetail(*d)
	out.RecentActivity = m.feedLocked(func(ev model.ActivityEvent) bool { return ev.HiveID == hiveID }, hiveRecentActivity)
	return out, nil
}

// CreateHiveFromHabit creates a hive owned by the mock user from one of
// its habits. Backfilled days count as done when the logged value is
// positive.
func (m *MockGateway) CreateHiveFromHabit(ctx context.Context, req model.HiveFromHabitRequest) (model.Hive, error) {
	if err := m.enter(ctx, "CreateHiveFromHabit"); err != nil {
		return model.Hive{}, err
	}
	if req.BackfillDays < 0 || req.BackfillDays > maxBackfillDays {
		return model.Hive{}, &apperr.ServerError{Status: 422, Message: "backfill_days must be between 0 and 90"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.habits[req.HabitID]
	if !ok || h.OwnerID != m.userID {
		return model.Hive{}, &apperr.ServerError{Status: 404, Message: "Habit not found"}
	}

	name := req.Name
	if name == "" {
		name = h.Name
	}
	now := m.Now()
	hive := model.Hive{
		ID:           uuid.NewString(),
		Name:         name,
		OwnerID:      m.userID,
		ColorHex:     h.ColorHex,
		Type:         h.Type,
		TargetPerDay: h.Target(),
		Rule:         "all_must_complete",
		MemberCount:  1,
		CreatedAt:    now,
	}
	d := &model.HiveDetail{
		Hive:   hive,
		Target: hive.TargetPerDay,
		Members: []model.HiveMember{{
			HiveID:      hive.ID,
			UserID:      m.userID,
			Role:        "owner",
			DisplayName: m.profileLocked().DisplayName,
			JoinedAt:    now,
		}},
	}
	if req.BackfillDays > 0 {
		start := m.today().AddDays(-req.BackfillDays)
		for day, entry := range m.logs[h.ID] {
			if day.Before(start) {
				continue
			}
			d.MemberDays = append(d.MemberDays, model.HiveMemberDay{
				HiveID: hive.ID,
				UserID: m.userID,
				Day:    day,
				Value:  entry.Value,
				Done:   entry.Value > 0,
			})
		}
		sort.Slice(d.MemberDays, func(i, j int) bool { return d.MemberDays[i].Day.Before(d.MemberDays[j].Day) })
	}
	m.hives[hive.ID] = d
	return hive, nil
}

// DeleteHive removes a hive the mock user owns, with its invites and
// activity.
func (m *MockGateway) DeleteHive(ctx context.Context, hiveID string) error {
	if err := m.enter(ctx, "DeleteHive"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.hives[hiveID]
	if !ok {
		return &apperr.ServerError{Status: 404, Message: "Hive not found"}
	}
	if d.Hive.OwnerID != m.userID {
		return &apperr.ServerError{Status: 403, Message: "Only the owner can delete the hive"}
	}
	delete(m.hives, hiveID)
	for code, inv := range m.invites {
		if inv.HiveID == hiveID {
			delete(m.invites, code)
		}
	}
	kept := m.activity[:0]
	for _, ev := range m.activity {
		if ev.HiveID != hiveID {
			kept = append(kept, ev)
		}
	}
	m.activity = kept
	return nil
}

// LogHiveDay upserts today's member day for the mock user.
func (m *MockGateway) LogHiveDay(ctx context.Context, hiveID string, value int) (model.HiveMemberDay, error) {
	if err := m.enter(ctx, "LogHiveDay"); err != nil {
		return model.HiveMemberDay{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.hives[hiveID]
	if !ok || !m.isMemberLocked(d) {
		return model.HiveMemberDay{}, &apperr.ServerError{Status: 403, Message: "Not a member of this hive"}
	}

	row := model.HiveMemberDay{
		HiveID: hiveID,
		UserID: m.userID,
		Day:    m.today(),
		Value:  value,
		Done:   value >= max(d.Target, 1),
	}
	wasDone := false
	idx := -1
	for i, existing := range d.MemberDays {
		if existing.UserID == row.UserID && existing.Day == row.Day {
			wasDone, idx = existing.Done, i
			break
		}
	}
	if idx >= 0 {
		d.MemberDays[idx] = row
	} else {
		d.MemberDays = append(d.MemberDays, row)
	}
	if row.Done && !wasDone {
		m.recordLocked(hiveID, model.ActivityHabitCompleted, map[string]any{"value": value})
	}
	return row, nil
}

// JoinHive redeems an invite created by CreateHiveInvite.
func (m *MockGateway) JoinHive(ctx context.Context, code string) (model.JoinResult, error) {
	if err := m.enter(ctx, "JoinHive"); err != nil {
		return model.JoinResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invites[code]
	if !ok {
		return model.JoinResult{}, &apperr.ServerError{Status: 404, Message: "Invalid invite code"}
	}
	if !m.Now().Before(inv.ExpiresAt) || inv.UseCount >= inv.MaxUses {
		return model.JoinResult{}, &apperr.ServerError{Status: 400, Message: "Invite code expired or exhausted"}
	}

	d := m.hives[inv.HiveID]
	if m.isMemberLocked(d) {
		return model.JoinResult{Success: true, HiveID: inv.HiveID, Message: "Already a member"}, nil
	}
	inv.UseCount++
	d.Members = append(d.Members, model.HiveMember{
		HiveID:   inv.HiveID,
		UserID:   m.userID,
		Role:     "member",
		JoinedAt: m.Now(),
	})
	d.Hive.MemberCount = len(d.Members)
	m.recordLocked(inv.HiveID, model.ActivityHiveJoined, map[string]any{})
	return model.JoinResult{Success: true, HiveID: inv.HiveID, Message: "Successfully joined hive"}, nil
}

// CreateHiveInvite issues an invite code for a hive.
func (m *MockGateway) CreateHiveInvite(ctx context.Context, hiveID string, ttl time.Duration, maxUses int) (model.Invite, error) {
	if err := m.enter(ctx, "CreateHiveInvite"); err != nil {
		return model.Invite{}, err
	}
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	if maxUses <= 0 {
		maxUses = DefaultInviteMaxUses
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hives[hiveID]; !ok {
		return model.Invite{}, &apperr.ServerError{Status: 404, Message: "Hive not found"}
	}

	now := m.Now()
	inv := &model.Invite{
		ID:        uuid.NewString(),
		HiveID:    hiveID,
		Code:      fmt.Sprintf("%012x", uuid.New().ID()),
		CreatedBy: m.userID,
		ExpiresAt: now.Add(ttl),
		MaxUses:   maxUses,
		CreatedAt: now,
	}
	m.invites[inv.Code] = inv
	return *inv, nil
}

// ActivityFeed lists events in the mock user's hives, or in hiveID when
// set, newest first.
func (m *MockGateway) ActivityFeed(ctx context.Context, hiveID string, limit int) ([]model.ActivityEvent, error) {
	if err := m.enter(ctx, "ActivityFeed"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	limit = min(limit, MaxActivityLimit)

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.feedLocked(func(ev model.ActivityEvent) bool {
		if hiveID != "" {
			return ev.HiveID == hiveID
		}
		d, ok := m.hives[ev.HiveID]
		return ok && m.isMemberLocked(d)
	}, limit), nil
}

var _ Gateway = (*MockGateway)(nil)
