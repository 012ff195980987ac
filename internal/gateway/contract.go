// ABOUTME: Remote gateway contract the engine depends on
// ABOUTME: One interface for auth, profile, habits, logs, hives and activity; implemented over HTTP and in memory

package gateway

import (
	"context"
	"time"

	"github.com/venkateshthallam/habithive/internal/daykey"
	"github.com/venkateshthallam/habithive/internal/model"
	"github.com/venkateshthallam/habithive/internal/session"
)

// Invite defaults used when the caller passes zero values.
const (
	DefaultInviteTTL     = 7 * 24 * time.Hour
	DefaultInviteMaxUses = 20
)

// Activity feed limits.
const (
	DefaultActivityLimit = 50
	MaxActivityLimit     = 100
)

// Credential identifies the user during sign-in. Either Phone+OTP or
// AppleIDToken must be set.
type Credential struct {
	Phone        string
	OTP          string
	AppleIDToken string
	Nonce        string
}

// IsApple reports whether the credential is an Apple identity token.
func (c Credential) IsApple() bool {
	return c.AppleIDToken != ""
}

// Gateway is the remote API contract.
type Gateway interface {
	SendOTP(ctx context.Context, phone string) error
	Authenticate(ctx context.Context, cred Credential) (session.Tokens, error)
	RefreshToken(ctx context.Context, refreshToken string) (session.Tokens, error)

	GetProfile(ctx context.Context) (model.Profile, error)
	UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (model.Profile, error)

	ListHabits(ctx context.Context, includeLogs bool, sinceDays int) ([]model.HabitWithLogs, error)
	CreateHabit(ctx context.Context, req model.CreateHabitRequest) (model.Habit, error)
	DeleteHabit(ctx context.Context, habitID string) error
	LogHabit(ctx context.Context, habitID string, value int) (model.LogEntry, error)
	// DeleteHabitLog removes the entry for day, or today's entry when day is nil.
	DeleteHabitLog(ctx context.Context, habitID string, day *daykey.Key) error

	ListHives(ctx context.Context) ([]model.Hive, error)
	GetHiveDetail(ctx context.Context, hiveID string) (model.HiveDetail, error)
	CreateHiveFromHabit(ctx context.Context, req model.HiveFromHabitRequest) (model.Hive, error)
	// DeleteHive is allowed for the hive's owner only.
	DeleteHive(ctx context.Context, hiveID string) error
	LogHiveDay(ctx context.Context, hiveID string, value int) (model.HiveMemberDay, error)
	JoinHive(ctx context.Context, code string) (model.JoinResult, error)
	CreateHiveInvite(ctx context.Context, hiveID string, ttl time.Duration, maxUses int) (model.Invite, error)

	// ActivityFeed lists events newest first across the user's hives, or
	// for one hive when hiveID is set.
	ActivityFeed(ctx context.Context, hiveID string, limit int) ([]model.ActivityEvent, error)
}

// Authorizer runs fn with a valid bearer token, refreshing and retrying
// once when fn reports apperr.ErrUnauthorized.
type Authorizer interface {
	Do(ctx context.Context, fn func(ctx context.Context, token string) error) error
}

var _ session.Refresher = Gateway(nil)
