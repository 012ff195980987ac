// ABOUTME: Tests for store change subscriptions
// ABOUTME: Covers fan-out, unsubscribe, context cancellation, slow subscribers and hive day events

package logstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venkateshthallam/habithive/internal/apperr"
	"github.com/venkateshthallam/habithive/internal/model"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBroadcaster_MultipleSubscribersReceiveSameEvent(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch1, _ := b.Subscribe(t.Context())
	ch2, _ := b.Subscribe(t.Context())

	b.Publish(Event{Kind: EventReloaded, Version: 7})

	assert.Equal(t, uint64(7), receive(t, ch1).Version)
	assert.Equal(t, uint64(7), receive(t, ch2).Version)
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, id := b.Subscribe(t.Context())
	b.Unsubscribe(id)
	b.Unsubscribe(id)

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestBroadcaster_ContextCancellationUnsubscribes(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx)
	cancel()

	require.Eventually(t, func() bool { return b.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestBroadcaster_CloseReleasesWatchers(t *testing.T) {
	b := NewBroadcaster(nil)

	var chans []<-chan Event
	for range 3 {
		ch, _ := b.Subscribe(context.Background())
		chans = append(chans, ch)
	}
	_, unsubID := b.Subscribe(context.Background())
	b.Unsubscribe(unsubID)

	closed := make(chan struct{})
	go func() {
		b.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return: context watchers still running")
	}

	for _, ch := range chans {
		_, ok := <-ch
		assert.False(t, ok)
	}
	assert.Zero(t, b.SubscriberCount())

	// Closed broadcasters hand out closed channels and stay closable.
	ch, _ := b.Subscribe(context.Background())
	_, ok := <-ch
	assert.False(t, ok)
	b.Close()
}

func TestBroadcaster_SlowSubscriberDropsEvents(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context())
	for i := 0; i < subscriberBufferSize+10; i++ {
		b.Publish(Event{Kind: EventApplied, Version: uint64(i + 1)})
	}
	assert.Len(t, ch, subscriberBufferSize)
}

func TestStore_PublishesChanges(t *testing.T) {
	s := newStoreWith(t, model.HabitWithLogs{Habit: testHabit("h1")})
	ch, _ := s.Events().Subscribe(t.Context())

	m, err := s.Apply("h1", today, 1)
	require.NoError(t, err)
	ev := receive(t, ch)
	assert.Equal(t, EventApplied, ev.Kind)
	assert.Equal(t, "h1", ev.HabitID)
	assert.Equal(t, today, ev.Day)
	assert.Equal(t, s.Version(), ev.Version)

	require.NoError(t, s.Confirm(m, confirmedEntry("h1", today, 1, "srv")))
	assert.Equal(t, EventConfirmed, receive(t, ch).Kind)

	// Rejected applies publish nothing.
	_, err = s.Apply("missing", today, 1)
	require.Error(t, err)
	assert.Len(t, ch, 0)
}

func TestStore_HiveDayProtocol(t *testing.T) {
	s := newStoreWith(t)

	detail := model.HiveDetail{
		Hive: model.Hive{ID: "hv1", Name: "Runners", TargetPerDay: 2},
		Members: []model.HiveMember{
			{UserID: "u1", DisplayName: "Ada"},
			{UserID: "u2", DisplayName: "Bo"},
		},
		MemberDays: []model.HiveMemberDay{
			{UserID: "u2", Day: today, Value: 2, Done: true},
		},
	}
	require.True(t, s.ReconcileHive(s.BeginReload(HiveStream("hv1")), detail))

	ch, _ := s.Events().Subscribe(t.Context())

	_, err := s.ApplyHiveDay("unknown", "u1", today, 1)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	m, err := s.ApplyHiveDay("hv1", "u1", today, 2)
	require.NoError(t, err)
	assert.Equal(t, EventApplied, receive(t, ch).Kind)

	_, err = s.ApplyHiveDay("hv1", "u1", today, 3)
	assert.ErrorIs(t, err, apperr.ErrMutationPending)

	// Hive reload while pending keeps the optimistic row.
	require.True(t, s.ReconcileHive(s.BeginReload(HiveStream("hv1")), detail))
	got, ok := s.Hive("hv1")
	require.True(t, ok)
	assert.Equal(t, 2, got.Target)
	require.Len(t, got.MemberDays, 2)
	assert.Equal(t, "u1", got.MemberDays[0].UserID)
	assert.True(t, got.MemberDays[0].Done)

	require.Error(t, s.RollbackHiveDay(m, errors.New("offline")))
	got, _ = s.Hive("hv1")
	require.Len(t, got.MemberDays, 1)
	assert.Equal(t, "u2", got.MemberDays[0].UserID)

	m2, err := s.ApplyHiveDay("hv1", "u1", today, 1)
	require.NoError(t, err)
	require.NoError(t, s.ConfirmHiveDay(m2, model.HiveMemberDay{HiveID: "hv1", UserID: "u1", Day: today, Value: 1}))
	require.NoError(t, s.ConfirmHiveDay(m2, model.HiveMemberDay{}))

	got, _ = s.Hive("hv1")
	require.Len(t, got.MemberDays, 2)
	assert.Equal(t, 1, got.MemberDays[0].Value)
	assert.False(t, got.MemberDays[0].Done, "1 of 2 is partial")

	// Habit-log methods reject hive mutations.
	assert.ErrorIs(t, s.Confirm(m2, model.LogEntry{}), apperr.ErrValidation)
}

func TestStore_StaleHiveReloadDiscarded(t *testing.T) {
	s := newStoreWith(t)
	older := s.BeginReload(HiveStream("hv1"))
	newer := s.BeginReload(HiveStream("hv1"))

	require.True(t, s.ReconcileHive(newer, model.HiveDetail{Hive: model.Hive{ID: "hv1", Name: "new"}}))
	assert.False(t, s.ReconcileHive(older, model.HiveDetail{Hive: model.Hive{ID: "hv1", Name: "old"}}))

	got, ok := s.Hive("hv1")
	require.True(t, ok)
	assert.Equal(t, "new", got.Hive.Name)
}
