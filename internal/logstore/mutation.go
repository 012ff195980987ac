// ABOUTME: Mutation handles for optimistic changes to habit logs and hive member days
// ABOUTME: Each handle walks Idle -> Applied -> Confirmed or RolledBack exactly once

package logstore

import (
	"fmt"
	"sync/atomic"

	"github.com/venkateshthallam/habithive/internal/daykey"
	"github.com/venkateshthallam/habithive/internal/model"
)

// Kind is what a mutation does to its key.
type Kind string

const (
	// KindInsert adds an entry where none existed.
	KindInsert Kind = "insert"
	// KindDelete removes an existing entry (toggle-off).
	KindDelete Kind = "delete"
	// KindUpsert sets the entry's value, creating it if absent.
	KindUpsert Kind = "upsert"
)

// State is a mutation's position in its lifecycle.
type State int32

const (
	StateIdle State = iota
	StateApplied
	StateConfirmed
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateApplied:
		return "applied"
	case StateConfirmed:
		return "confirmed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type logKey struct {
	habitID string
	day     daykey.Key
}

type hiveDayKey struct {
	hiveID string
	userID string
	day    daykey.Key
}

// Mutation is the handle returned by Apply, Set and ApplyHiveDay. Its
// exported fields are fixed at creation.
type Mutation struct {
	ID    string
	Kind  Kind
	Day   daykey.Key
	Value int

	// HabitID is set for habit-log mutations.
	HabitID string
	// HiveID and UserID are set for hive member-day mutations.
	HiveID string
	UserID string

	state atomic.Int32

	// Pre-mutation values, guarded by the store lock. Nil means absent.
	prevLog  *model.LogEntry
	prevHive *model.HiveMemberDay
}

// State returns the mutation's current state.
func (m *Mutation) State() State {
	return State(m.state.Load())
}

// Pending reports whether the mutation is Applied and not yet settled.
func (m *Mutation) Pending() bool {
	return m.State() == StateApplied
}

// IsHive reports whether the mutation targets a hive member day.
func (m *Mutation) IsHive() bool {
	return m.HiveID != ""
}

func (m *Mutation) setState(s State) {
	m.state.Store(int32(s))
}

func (m *Mutation) logKey() logKey {
	return logKey{habitID: m.HabitID, day: m.Day}
}

func (m *Mutation) hiveKey() hiveDayKey {
	return hiveDayKey{hiveID: m.HiveID, userID: m.UserID, day: m.Day}
}

func (m *Mutation) String() string {
	if m.IsHive() {
		return fmt.Sprintf("%s hive %s user %s on %s", m.Kind, m.HiveID, m.UserID, m.Day)
	}
	return fmt.Sprintf("%s habit %s on %s", m.Kind, m.HabitID, m.Day)
}

// optimisticEntry is the entry a pending insert or upsert makes visible.
func (m *Mutation) optimisticEntry() model.LogEntry {
	entry := model.LogEntry{
		HabitID: m.HabitID,
		Day:     m.Day,
		Value:   m.Value,
		Source:  model.SourceApp,
	}
	// An upsert over a confirmed entry keeps its identity.
	if m.Kind == KindUpsert && m.prevLog != nil {
		entry.ServerID = m.prevLog.ServerID
		entry.CreatedAt = m.prevLog.CreatedAt
		entry.Source = m.prevLog.Source
	}
	return entry
}

// Removal is the handle returned by RemoveHabit, used to restore the habit
// if the server rejects the delete.
type Removal struct {
	Habit model.Habit
	Logs  []model.LogEntry
	index int
}

func cloneEntry(e model.LogEntry) model.LogEntry {
	if e.CreatedAt != nil {
		t := *e.CreatedAt
		e.CreatedAt = &t
	}
	return e
}

func entryPtr(e model.LogEntry, ok bool) *model.LogEntry {
	if !ok {
		return nil
	}
	c := cloneEntry(e)
	return &c
}

func hiveDayPtr(d model.HiveMemberDay, ok bool) *model.HiveMemberDay {
	if !ok {
		return nil
	}
	return &d
}
