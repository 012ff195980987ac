// ABOUTME: Domain types for habits, log entries, hives, invites, profiles and activity
// ABOUTME: Shared by the gateway contract, the local log store and the aggregation engine

package model

import (
	"time"

	"github.com/venkateshthallam/habithive/internal/daykey"
)

// HabitType selects the completion predicate for a habit.
type HabitType string

const (
	HabitTypeCheckbox HabitType = "checkbox"
	HabitTypeCounter  HabitType = "counter"
)

// Valid reports whether t is a known habit type.
func (t HabitType) Valid() bool {
	return t == HabitTypeCheckbox || t == HabitTypeCounter
}

// Source values recorded on log entries.
const (
	SourceApp = "app"
	SourceAPI = "api"
)

// Habit is a user-owned habit definition.
type Habit struct {
	ID            string
	OwnerID       string
	Name          string
	Emoji         string
	Type          HabitType
	TargetPerDay  int
	ColorHex      string
	ScheduleDaily bool
	ScheduleMask  int
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Target returns TargetPerDay clamped to at least 1.
func (h Habit) Target() int {
	return max(h.TargetPerDay, 1)
}

// LogEntry is one day's activity for a habit. ServerID and CreatedAt stay
// empty until the server confirms the entry.
type LogEntry struct {
	HabitID   string
	Day       daykey.Key
	Value     int
	Source    string
	ServerID  string
	CreatedAt *time.Time
}

// Confirmed reports whether the server has acknowledged the entry.
func (e LogEntry) Confirmed() bool {
	return e.ServerID != ""
}

// HabitWithLogs is a habit plus its recent entries as returned by a reload.
type HabitWithLogs struct {
	Habit Habit
	Logs  []LogEntry
}

// CreateHabitRequest describes a new habit.
type CreateHabitRequest struct {
	Name          string
	Emoji         string
	ColorHex      string
	Type          HabitType
	TargetPerDay  int
	ScheduleDaily bool
	ScheduleMask  int
}

// Hive is a group of users sharing a habit goal.
type Hive struct {
	ID            string
	Name          string
	OwnerID       string
	ColorHex      string
	Type          HabitType
	TargetPerDay  int
	Rule          string
	Threshold     *int
	CurrentLength int
	MemberCount   int
	CreatedAt     time.Time
}

// HiveMember is one user's membership in a hive.
type HiveMember struct {
	HiveID      string
	UserID      string
	Role        string
	DisplayName string
	JoinedAt    time.Time
}

// HiveMemberDay is one member's activity in a hive for one day.
type HiveMemberDay struct {
	HiveID string
	UserID string
	Day    daykey.Key
	Value  int
	Done   bool
}

// HiveDetail is a hive with its members and their recent days.
type HiveDetail struct {
	Hive           Hive
	Members        []HiveMember
	MemberDays     []HiveMemberDay
	RecentActivity []ActivityEvent // newest first
	Target         int
}

// HiveFromHabitRequest turns one of the user's habits into a hive.
// BackfillDays copies that many days of the habit's history into the
// owner's member days.
type HiveFromHabitRequest struct {
	HabitID      string
	Name         string // empty uses the habit's name
	BackfillDays int
}

// Invite is a join code for a hive.
type Invite struct {
	ID        string
	HiveID    string
	Code      string
	CreatedBy string
	ExpiresAt time.Time
	MaxUses   int
	UseCount  int
	CreatedAt time.Time
}

// JoinResult is the outcome of redeeming an invite code.
type JoinResult struct {
	Success bool
	HiveID  string
	Message string
}

// ActivityType names a feed event.
type ActivityType string

const (
	ActivityHabitCompleted  ActivityType = "habit_completed"
	ActivityStreakMilestone ActivityType = "streak_milestone"
	ActivityHiveJoined      ActivityType = "hive_joined"
	ActivityHiveAdvanced    ActivityType = "hive_advanced"
	ActivityHiveBroken      ActivityType = "hive_broken"
)

// ActivityEvent is one entry in a hive's activity feed.
type ActivityEvent struct {
	ID          string
	ActorID     string
	HiveID      string
	HabitID     string
	Type        ActivityType
	Data        map[string]any
	CreatedAt   time.Time
	ActorName   string
	ActorAvatar string
}

// Profile themes.
const (
	ThemeHoney = "honey"
	ThemeMint  = "mint"
	ThemeNight = "night"
)

// Profile is the signed-in user's account settings. Timezone and
// DayStartHour decide which calendar day "today" is.
type Profile struct {
	ID           string
	DisplayName  string
	AvatarURL    string
	Timezone     string
	DayStartHour int
	Theme        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProfileUpdate changes only the fields that are set.
type ProfileUpdate struct {
	DisplayName  *string
	AvatarURL    *string
	Timezone     *string
	DayStartHour *int
	Theme        *string
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.DisplayName == nil && u.AvatarURL == nil && u.Timezone == nil &&
		u.DayStartHour == nil && u.Theme == nil
}
