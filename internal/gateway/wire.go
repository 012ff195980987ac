// ABOUTME: JSON wire shapes for the HabitHive API and their conversion to domain types
// ABOUTME: Day keys travel as yyyy-MM-dd, timestamps as ISO-8601 with optional fraction and zone

package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/venkateshthallam/habithive/internal/daykey"
	"github.com/venkateshthallam/habithive/internal/model"
	"github.com/venkateshthallam/habithive/internal/session"
)

// timestampLayouts are tried in order. Zone-less timestamps are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp decodes ISO-8601 timestamps with or without fractional seconds.
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses s using the accepted ISO-8601 layouts.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Day decodes a yyyy-MM-dd day key. Full timestamps are truncated to their date.
type Day struct {
	daykey.Key
}

func (d *Day) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	key, err := daykey.Parse(s)
	if err != nil {
		return err
	}
	d.Key = key
	return nil
}

func (d Day) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Key.String())
}

type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
	Phone        string `json:"phone,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}

func (r authResponse) toTokens() session.Tokens {
	return session.Tokens{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		UserID:       r.UserID,
		ExpiresIn:    time.Duration(r.ExpiresIn) * time.Second,
	}
}

type habitWire struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Name             string          `json:"name"`
	Emoji            string          `json:"emoji"`
	ColorHex         string          `json:"color_hex"`
	Type             model.HabitType `json:"type"`
	TargetPerDay     int             `json:"target_per_day"`
	ScheduleDaily    bool            `json:"schedule_daily"`
	ScheduleWeekmask int             `json:"schedule_weekmask"`
	IsActive         *bool           `json:"is_active"`
	CreatedAt        Timestamp       `json:"created_at"`
	UpdatedAt        Timestamp       `json:"updated_at"`
	RecentLogs       []habitLogWire  `json:"recent_logs,omitempty"`
}

func (w habitWire) toModel() model.Habit {
	active := true
	if w.IsActive != nil {
		active = *w.IsActive
	}
	habitType := w.Type
	if habitType == "" {
		habitType = model.HabitTypeCheckbox
	}
	return model.Habit{
		ID:            w.ID,
		OwnerID:       w.UserID,
		Name:          w.Name,
		Emoji:         w.Emoji,
		Type:          habitType,
		TargetPerDay:  max(w.TargetPerDay, 1),
		ColorHex:      w.ColorHex,
		ScheduleDaily: w.ScheduleDaily,
		ScheduleMask:  w.ScheduleWeekmask,
		IsActive:      active,
		CreatedAt:     w.CreatedAt.Time,
		UpdatedAt:     w.UpdatedAt.Time,
	}
}

type habitLogWire struct {
	ID        string    `json:"id"`
	HabitID   string    `json:"habit_id"`
	UserID    string    `json:"user_id"`
	LogDate   Day       `json:"log_date"`
	Value     int       `json:"value"`
	Source    string    `json:"source"`
	CreatedAt Timestamp `json:"created_at"`
}

func (w habitLogWire) toModel() model.LogEntry {
	entry := model.LogEntry{
		HabitID:  w.HabitID,
		Day:      w.LogDate.Key,
		Value:    w.Value,
		Source:   w.Source,
		ServerID: w.ID,
	}
	if !w.CreatedAt.IsZero() {
		created := w.CreatedAt.Time
		entry.CreatedAt = &created
	}
	return entry
}

type createHabitWire struct {
	Name             string          `json:"name"`
	Emoji            string          `json:"emoji,omitempty"`
	ColorHex         string          `json:"color_hex,omitempty"`
	Type             model.HabitType `json:"type"`
	TargetPerDay     int             `json:"target_per_day"`
	ScheduleDaily    bool            `json:"schedule_daily"`
	ScheduleWeekmask int             `json:"schedule_weekmask"`
}

func newCreateHabitWire(req model.CreateHabitRequest) createHabitWire {
	return createHabitWire{
		Name:             req.Name,
		Emoji:            req.Emoji,
		ColorHex:         req.ColorHex,
		Type:             req.Type,
		TargetPerDay:     req.TargetPerDay,
		ScheduleDaily:    req.ScheduleDaily,
		ScheduleWeekmask: req.ScheduleMask,
	}
}

type valueRequest struct {
	Value int `json:"value"`
}

type hiveWire struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	OwnerID       string          `json:"owner_id"`
	ColorHex      string          `json:"color_hex"`
	Type          model.HabitType `json:"type"`
	TargetPerDay  int             `json:"target_per_day"`
	Rule          string          `json:"rule"`
	Threshold     *int            `json:"threshold"`
	CurrentLength int             `json:"current_length"`
	MemberCount   *int            `json:"member_count"`
	CreatedAt     Timestamp       `json:"created_at"`
}

func (w hiveWire) toModel() model.Hive {
	hive := model.Hive{
		ID:            w.ID,
		Name:          w.Name,
		OwnerID:       w.OwnerID,
		ColorHex:      w.ColorHex,
		Type:          w.Type,
		TargetPerDay:  max(w.TargetPerDay, 1),
		Rule:          w.Rule,
		Threshold:     w.Threshold,
		CurrentLength: w.CurrentLength,
		CreatedAt:     w.CreatedAt.Time,
	}
	if w.MemberCount != nil {
		hive.MemberCount = *w.MemberCount
	}
	return hive
}

type hiveMemberWire struct {
	HiveID      string    `json:"hive_id"`
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
	DisplayName *string   `json:"display_name"`
	JoinedAt    Timestamp `json:"joined_at"`
}

func (w hiveMemberWire) toModel() model.HiveMember {
	m := model.HiveMember{
		HiveID:   w.HiveID,
		UserID:   w.UserID,
		Role:     w.Role,
		JoinedAt: w.JoinedAt.Time,
	}
	if w.DisplayName != nil {
		m.DisplayName = *w.DisplayName
	}
	return m
}

type hiveMemberDayWire struct {
	HiveID  string `json:"hive_id"`
	UserID  string `json:"user_id"`
	DayDate Day    `json:"day_date"`
	Value   int    `json:"value"`
	Done    bool   `json:"done"`
}

func (w hiveMemberDayWire) toModel() model.HiveMemberDay {
	return model.HiveMemberDay{
		HiveID: w.HiveID,
		UserID: w.UserID,
		Day:    w.DayDate.Key,
		Value:  w.Value,
		Done:   w.Done,
	}
}

type hiveDetailWire struct {
	hiveWire
	Members        []hiveMemberWire    `json:"members"`
	MemberDays     []hiveMemberDayWire `json:"member_days"`
	RecentActivity []activityEventWire `json:"recent_activity"`
}

func (w hiveDetailWire) toModel() model.HiveDetail {
	detail := model.HiveDetail{
		Hive:       w.hiveWire.toModel(),
		Members:    make([]model.HiveMember, 0, len(w.Members)),
		MemberDays: make([]model.HiveMemberDay, 0, len(w.MemberDays)),
	}
	for _, m := range w.Members {
		member := m.toModel()
		if member.HiveID == "" {
			member.HiveID = detail.Hive.ID
		}
		detail.Members = append(detail.Members, member)
	}
	for _, d := range w.MemberDays {
		day := d.toModel()
		if day.HiveID == "" {
			day.HiveID = detail.Hive.ID
		}
		detail.MemberDays = append(detail.MemberDays, day)
	}
	for _, a := range w.RecentActivity {
		ev := a.toModel()
		if ev.HiveID == "" {
			ev.HiveID = detail.Hive.ID
		}
		detail.RecentActivity = append(detail.RecentActivity, ev)
	}
	detail.Target = detail.Hive.TargetPerDay
	if detail.Hive.MemberCount == 0 {
		detail.Hive.MemberCount = len(detail.Members)
	}
	return detail
}

type hiveFromHabitWire struct {
	HabitID      string  `json:"habit_id"`
	Name         *string `json:"name,omitempty"`
	BackfillDays int     `json:"backfill_days"`
}

func newHiveFromHabitWire(req model.HiveFromHabitRequest) hiveFromHabitWire {
	w := hiveFromHabitWire{HabitID: req.HabitID, BackfillDays: req.BackfillDays}
	if req.Name != "" {
		w.Name = &req.Name
	}
	return w
}

type activityEventWire struct {
	ID          string             `json:"id"`
	ActorID     string             `json:"actor_id"`
	HiveID      *string            `json:"hive_id"`
	HabitID     *string            `json:"habit_id"`
	Type        model.ActivityType `json:"type"`
	Data        map[string]any     `json:"data"`
	CreatedAt   Timestamp          `json:"created_at"`
	ActorName   *string            `json:"actor_name"`
	ActorAvatar *string            `json:"actor_avatar"`
}

func (w activityEventWire) toModel() model.ActivityEvent {
	return model.ActivityEvent{
		ID:          w.ID,
		ActorID:     w.ActorID,
		HiveID:      deref(w.HiveID),
		HabitID:     deref(w.HabitID),
		Type:        w.Type,
		Data:        w.Data,
		CreatedAt:   w.CreatedAt.Time,
		ActorName:   deref(w.ActorName),
		ActorAvatar: deref(w.ActorAvatar),
	}
}

type profileWire struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	AvatarURL    *string   `json:"avatar_url"`
	Timezone     string    `json:"timezone"`
	DayStartHour int       `json:"day_start_hour"`
	Theme        string    `json:"theme"`
	CreatedAt    Timestamp `json:"created_at"`
	UpdatedAt    Timestamp `json:"updated_at"`
}

func (w profileWire) toModel() model.Profile {
	return model.Profile{
		ID:           w.ID,
		DisplayName:  w.DisplayName,
		AvatarURL:    deref(w.AvatarURL),
		Timezone:     w.Timezone,
		DayStartHour: w.DayStartHour,
		Theme:        w.Theme,
		CreatedAt:    w.CreatedAt.Time,
		UpdatedAt:    w.UpdatedAt.Time,
	}
}

// profileUpdateWire sends only the fields being changed.
type profileUpdateWire struct {
	DisplayName  *string `json:"display_name,omitempty"`
	AvatarURL    *string `json:"avatar_url,omitempty"`
	Timezone     *string `json:"timezone,omitempty"`
	DayStartHour *int    `json:"day_start_hour,omitempty"`
	Theme        *string `json:"theme,omitempty"`
}

func newProfileUpdateWire(u model.ProfileUpdate) profileUpdateWire {
	return profileUpdateWire(u)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type inviteRequest struct {
	TTLMinutes int `json:"ttl_minutes"`
	MaxUses    int `json:"max_uses"`
}

type inviteWire struct {
	ID        string    `json:"id"`
	HiveID    string    `json:"hive_id"`
	Code      string    `json:"code"`
	CreatedBy string    `json:"created_by"`
	ExpiresAt Timestamp `json:"expires_at"`
	MaxUses   int       `json:"max_uses"`
	UseCount  int       `json:"use_count"`
	CreatedAt Timestamp `json:"created_at"`
}

func (w inviteWire) toModel() model.Invite {
	return model.Invite{
		ID:        w.ID,
		HiveID:    w.HiveID,
		Code:      w.Code,
		CreatedBy: w.CreatedBy,
		ExpiresAt: w.ExpiresAt.Time,
		MaxUses:   w.MaxUses,
		UseCount:  w.UseCount,
		CreatedAt: w.CreatedAt.Time,
	}
}

type joinResponse struct {
	Success bool   `json:"success"`
	HiveID  string `json:"hive_id"`
	Message string `json:"message"`
}

// errorBody matches FastAPI's {"detail": ...} error envelope. Detail may be a
// string or a list of validation objects.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (b errorBody) text() string {
	if len(b.Detail) > 0 {
		var s string
		if err := json.Unmarshal(b.Detail, &s); err == nil {
			return s
		}
		return string(b.Detail)
	}
	if b.Error != "" {
		return b.Error
	}
	return b.Message
}
