// ABOUTME: Tests for profile loading and updates
// ABOUTME: The profile's zone and day-start hour move "today" after sign-in and reset on logout

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venkateshthallam/habithive/internal/apperr"
	"github.com/venkateshthallam/habithive/internal/daykey"
	"github.com/venkateshthallam/habithive/internal/gateway"
	"github.com/venkateshthallam/habithive/internal/logstore"
	"github.com/venkateshthallam/habithive/internal/model"
	"github.com/venkateshthallam/habithive/internal/session"
)

func TestSignIn_AppliesProfileCalendar(t *testing.T) {
	f := newFixture(t)
	// 15:00 UTC is 11:00 in New York; a noon day start keeps it on the 3rd.
	f.gw.SeedProfile(model.Profile{DisplayName: "Ada", Timezone: "America/New_York", DayStartHour: 12})

	assert.Equal(t, today, f.eng.Today())
	f.signIn(t)
	assert.Equal(t, today.AddDays(-1), f.eng.Today())

	p, ok := f.eng.CachedProfile()
	require.True(t, ok)
	assert.Equal(t, "Ada", p.DisplayName)

	f.eng.SignOut()
	assert.Equal(t, today, f.eng.Today(), "logout restores the configured calendar")
	_, ok = f.eng.CachedProfile()
	assert.False(t, ok)
}

func TestSignIn_ProfileFailureKeepsConfiguredCalendar(t *testing.T) {
	f := newFixture(t)
	f.gw.SeedProfile(model.Profile{Timezone: "Asia/Tokyo"})
	f.gw.Before = func(_ context.Context, op string) error {
		if op == "GetProfile" {
			return &apperr.ServerError{Status: 500, Message: "boom"}
		}
		return nil
	}

	f.signIn(t)
	assert.True(t, f.mgr.Authenticated())
	assert.Equal(t, today, f.eng.Today())
	_, ok := f.eng.CachedProfile()
	assert.False(t, ok)
}

func TestProfile_UnknownZoneIgnored(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	f.gw.SeedProfile(model.Profile{Timezone: "Mars/Olympus_Mons", DayStartHour: 20})

	p, err := f.eng.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Mars/Olympus_Mons", p.Timezone)
	assert.Equal(t, today, f.eng.Today())
}

func TestProfile_KeepsConfiguredFirstWeekday(t *testing.T) {
	gw := gateway.NewMockGateway("u1")
	gw.Now = func() time.Time { return testNow }
	gw.SeedProfile(model.Profile{Timezone: "Europe/Berlin", DayStartHour: 4})
	store := logstore.New(nil)
	defer store.Close()

	eng := New(Options{
		Gateway:  gw,
		Session:  session.NewManager(gw),
		Store:    store,
		Calendar: daykey.Calendar{Location: time.UTC, FirstWeekday: time.Monday},
		Now:      gw.Now,
	})
	_, err := eng.SignIn(context.Background(), gateway.Credential{Phone: "+15550100", OTP: gateway.MockOTP})
	require.NoError(t, err)

	cal := eng.Calendar()
	assert.Equal(t, "Europe/Berlin", cal.Location.String())
	assert.Equal(t, 4, cal.DayStartHour)
	assert.Equal(t, time.Monday, cal.FirstWeekday)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	str := func(s string) *string { return &s }
	hour := func(h int) *int { return &h }

	invalid := []model.ProfileUpdate{
		{},
		{DisplayName: str("   ")},
		{Timezone: str("Nowhere/Special")},
		{Timezone: str("")},
		{DayStartHour: hour(24)},
		{DayStartHour: hour(-1)},
		{Theme: str("neon")},
	}
	for _, upd := range invalid {
		_, err := f.eng.UpdateProfile(context.Background(), upd)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	}
	assert.Equal(t, 0, f.gw.Calls("UpdateProfile"))

	// 15:00 UTC is already midnight in Tokyo.
	p, err := f.eng.UpdateProfile(context.Background(), model.ProfileUpdate{
		DisplayName:  str("  Ada "),
		Timezone:     str("Asia/Tokyo"),
		DayStartHour: hour(0),
		Theme:        str(model.ThemeNight),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.DisplayName)
	assert.Equal(t, model.ThemeNight, p.Theme)
	assert.Equal(t, today.AddDays(1), f.eng.Today())

	// Unset fields are kept.
	p, err = f.eng.UpdateProfile(context.Background(), model.ProfileUpdate{Theme: str(model.ThemeMint)})
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", p.Timezone)
	assert.Equal(t, "Ada", p.DisplayName)
}
