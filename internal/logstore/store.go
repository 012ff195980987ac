// ABOUTME: In-memory store of habits, log entries and hive member days for one session
// ABOUTME: Implements optimistic apply/confirm/rollback with a per-key lock and sequenced reloads

package logstore

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/venkateshthallam/habithive/internal/apperr"
	"github.com/venkateshthallam/habithive/internal/daykey"
	"github.com/venkateshthallam/habithive/internal/model"
)

// ErrNotPending is returned when confirming a mutation that was rolled back
// or abandoned.
var ErrNotPending = errors.New("mutation is not pending")

// StreamHabits is the reload stream for the habit list.
const StreamHabits = "habits"

// HiveStream returns the reload stream name for one hive.
func HiveStream(hiveID string) string {
	return "hive:" + hiveID
}

// Store holds one session's habits and logs. It is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	habits   map[string]model.Habit
	order    []string // habit IDs in server order
	logs     map[logKey]model.LogEntry
	pending  map[logKey]*Mutation
	removals map[string]*Removal // habit ID -> removal awaiting the server

	// Keys settled locally, with the habits sequence current at the time.
	// A reload issued at or before that sequence predates the settle and
	// must not overwrite the key.
	settled map[logKey]uint64
	removed map[string]uint64

	hives       map[string]model.HiveDetail // MemberDays live in hiveDays
	hiveOrder   []string
	hiveDays    map[hiveDayKey]model.HiveMemberDay
	hivePending map[hiveDayKey]*Mutation
	hiveSettled map[hiveDayKey]uint64

	reloads map[string]uint64 // stream -> latest issued sequence
	version uint64

	events *Broadcaster
	logger *slog.Logger
}

// New creates an empty Store. Pass nil logger for default.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		reloads: make(map[string]uint64),
		events:  NewBroadcaster(logger),
		logger:  logger.With("component", "logstore"),
	}
	s.clearLocked()
	return s
}

func (s *Store) clearLocked() {
	s.habits = make(map[string]model.Habit)
	s.order = nil
	s.logs = make(map[logKey]model.LogEntry)
	s.pending = make(map[logKey]*Mutation)
	s.removals = make(map[string]*Removal)
	s.settled = make(map[logKey]uint64)
	s.removed = make(map[string]uint64)
	s.hives = make(map[string]model.HiveDetail)
	s.hiveOrder = nil
	s.hiveDays = make(map[hiveDayKey]model.HiveMemberDay)
	s.hivePending = make(map[hiveDayKey]*Mutation)
	s.hiveSettled = make(map[hiveDayKey]uint64)
}

// bumpLocked advances the version and stamps ev with it.
func (s *Store) bumpLocked(ev Event) Event {
	s.version++
	ev.Version = s.version
	return ev
}

// Version returns a counter that increases on every state change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Events returns the store's broadcaster.
func (s *Store) Events() *Broadcaster {
	return s.events
}

// Close closes every subscription.
func (s *Store) Close() {
	s.events.Close()
}

func validateLogArgs(habitID string, day daykey.Key, value int) error {
	if habitID == "" {
		return apperr.Validationf("habit_id", "must not be empty")
	}
	if day.IsZero() {
		return apperr.Validationf("day", "must not be empty")
	}
	if value < 0 {
		return apperr.Validationf("value", "must be >= 0, got %d", value)
	}
	return nil
}

// beginLocked runs the shared preamble of Apply, Insert and Set. The caller
// holds mu.
func (s *Store) beginLocked(habitID string, day daykey.Key, value int) (logKey, error) {
	if err := validateLogArgs(habitID, day, value); err != nil {
		return logKey{}, err
	}
	if _, ok := s.habits[habitID]; !ok {
		return logKey{}, apperr.Validationf("habit_id", "unknown habit %q", habitID)
	}
	key := logKey{habitID: habitID, day: day}
	if _, busy := s.pending[key]; busy {
		return logKey{}, fmt.Errorf("habit %s on %s: %w", habitID, day, apperr.ErrMutationPending)
	}
	return key, nil
}

func (s *Store) newLogMutation(kind Kind, key logKey, value int, prev *model.LogEntry) *Mutation {
	m := &Mutation{
		ID:      uuid.NewString(),
		Kind:    kind,
		HabitID: key.habitID,
		Day:     key.day,
		Value:   value,
		prevLog: prev,
	}
	m.setState(StateApplied)
	s.pending[key] = m
	return m
}

// Apply toggles the entry for (habitID, day): it inserts an optimistic entry
// when none exists and removes the existing one otherwise. It fails with
// apperr.ErrMutationPending while another mutation for the key is pending.
func (s *Store) Apply(habitID string, day daykey.Key, value int) (*Mutation, error) {
	s.mu.Lock()
	key, err := s.beginLocked(habitID, day, value)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	var m *Mutation
	if existing, ok := s.logs[key]; ok {
		m = s.newLogMutation(KindDelete, key, existing.Value, entryPtr(existing, true))
		delete(s.logs, key)
	} else {
		m = s.newLogMutation(KindInsert, key, value, nil)
		s.logs[key] = m.optimisticEntry()
	}
	ev := s.bumpLocked(Event{Kind: EventApplied, HabitID: habitID, Day: day})
	s.mu.Unlock()

	s.logger.Debug("mutation applied", "mutation", m.String(), "id", m.ID)
	s.events.Publish(ev)
	return m, nil
}

// Insert adds an optimistic entry and fails with apperr.ErrDuplicateEntry
// when one already exists.
func (s *Store) Insert(habitID string, day daykey.Key, value int) (*Mutation, error) {
	s.mu.Lock()
	key, err := s.beginLocked(habitID, day, value)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if _, ok := s.logs[key]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("habit %s on %s: %w", habitID, day, apperr.ErrDuplicateEntry)
	}

	m := s.newLogMutation(KindInsert, key, value, nil)
	s.logs[key] = m.optimisticEntry()
	ev := s.bumpLocked(Event{Kind: EventApplied, HabitID: habitID, Day: day})
	s.mu.Unlock()

	s.events.Publish(ev)
	return m, nil
}

// Set optimistically sets the value for (habitID, day), creating the entry
// if needed. Value must be positive; use Apply to remove an entry.
func (s *Store) Set(habitID string, day daykey.Key, value int) (*Mutation, error) {
	if value <= 0 {
		return nil, apperr.Validationf("value", "must be > 0, got %d", value)
	}

	s.mu.Lock()
	key, err := s.beginLocked(habitID, day, value)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	existing, ok := s.logs[key]
	m := s.newLogMutation(KindUpsert, key, value, entryPtr(existing, ok))
	s.logs[key] = m.optimisticEntry()
	ev := s.bumpLocked(Event{Kind: EventApplied, HabitID: habitID, Day: day})
	s.mu.Unlock()

	s.events.Publish(ev)
	return m, nil
}

// Confirm settles a habit-log mutation with the server's entry. The local
// value and day are kept; the server supplies identity and timestamps.
// Confirming an already-confirmed mutation is a no-op.
func (s *Store) Confirm(m *Mutation, server model.LogEntry) error {
	if m == nil || m.IsHive() {
		return apperr.Validationf("mutation", "not a habit log mutation")
	}

	s.mu.Lock()
	switch m.State() {
	case StateConfirmed:
		s.mu.Unlock()
		return nil
	case StateApplied:
	default:
		s.mu.Unlock()
		return fmt.Errorf("confirm %s: %w", m, ErrNotPending)
	}

	key := m.logKey()
	delete(s.pending, key)
	switch m.Kind {
	case KindInsert, KindUpsert:
		entry, ok := s.logs[key]
		if !ok {
			entry = m.optimisticEntry()
		}
		entry.Value = m.Value
		entry.Day = m.Day
		if server.ServerID != "" {
			entry.ServerID = server.ServerID
		}
		if server.CreatedAt != nil {
			created := *server.CreatedAt
			entry.CreatedAt = &created
		}
		if server.Source != "" {
			entry.Source = server.Source
		}
		s.logs[key] = entry
	case KindDelete:
		delete(s.logs, key)
	}
	s.settled[key] = s.reloads[StreamHabits]
	m.prevLog = nil
	m.setState(StateConfirmed)
	ev := s.bumpLocked(Event{Kind: EventConfirmed, HabitID: m.HabitID, Day: m.Day})
	s.mu.Unlock()

	s.logger.Debug("mutation confirmed", "mutation", m.String(), "id", m.ID)
	s.events.Publish(ev)
	return nil
}

// Rollback restores the state from before m and returns cause wrapped with
// the mutation's key. Rolling back a settled mutation changes nothing.
func (s *Store) Rollback(m *Mutation, cause error) error {
	if cause == nil {
		cause = errors.New("rolled back")
	}
	if m == nil || m.IsHive() {
		return cause
	}

	s.mu.Lock()
	if !m.Pending() {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", m, cause)
	}

	key := m.logKey()
	delete(s.pending, key)
	if m.prevLog == nil {
		delete(s.logs, key)
	} else {
		s.logs[key] = *m.prevLog
	}
	m.prevLog = nil
	m.setState(StateRolledBack)
	ev := s.bumpLocked(Event{Kind: EventRolledBack, HabitID: m.HabitID, Day: m.Day})
	s.mu.Unlock()

	s.logger.Info("mutation rolled back", "mutation", m.String(), "error", cause)
	s.events.Publish(ev)
	return fmt.Errorf("%s: %w", m, cause)
}

// BeginReload issues the next sequence number for stream.
func (s *Store) BeginReload(stream string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads[stream]++
	return s.reloads[stream]
}

// Reconcile replaces habits and confirmed entries with a server snapshot
// taken under sequence seq. Pending mutations are re-applied on top of the
// snapshot, and keys confirmed or removed after seq was issued keep their
// local state. It returns false, changing nothing, when a newer habits
// reload has been issued since seq.
func (s *Store) Reconcile(seq uint64, snapshot []model.HabitWithLogs) bool {
	s.mu.Lock()
	if latest := s.reloads[StreamHabits]; seq < latest {
		s.mu.Unlock()
		s.logger.Debug("discarding stale reload", "seq", seq, "latest", latest)
		return false
	}

	habits := make(map[string]model.Habit, len(snapshot))
	order := make([]string, 0, len(snapshot))
	logs := make(map[logKey]model.LogEntry)
	for _, hw := range snapshot {
		id := hw.Habit.ID
		if _, removing := s.removals[id]; removing {
			continue
		}
		if at, ok := s.removed[id]; ok && at >= seq {
			continue
		}
		if _, dup := habits[id]; !dup {
			order = append(order, id)
		}
		habits[id] = hw.Habit
		for _, entry := range hw.Logs {
			entry.HabitID = id
			key := logKey{habitID: id, day: entry.Day}
			if _, dup := logs[key]; dup {
				s.logger.Warn("snapshot holds duplicate entry, keeping the last",
					"habit_id", id, "day", entry.Day)
			}
			logs[key] = cloneEntry(entry)
		}
	}

	for key, at := range s.settled {
		if at < seq {
			continue
		}
		if _, ok := habits[key.habitID]; !ok {
			continue
		}
		if local, ok := s.logs[key]; ok {
			logs[key] = cloneEntry(local)
		} else {
			delete(logs, key)
		}
	}

	// Pending wins: rebase each pending mutation onto the snapshot value for
	// its key, then make its optimistic state visible again.
	for key, m := range s.pending {
		if _, ok := habits[key.habitID]; !ok {
			delete(s.pending, key)
			m.prevLog = nil
			m.setState(StateRolledBack)
			s.logger.Info("abandoning mutation for vanished habit", "mutation", m.String())
			continue
		}
		snap, ok := logs[key]
		m.prevLog = entryPtr(snap, ok)
		switch m.Kind {
		case KindInsert, KindUpsert:
			logs[key] = m.optimisticEntry()
		case KindDelete:
			delete(logs, key)
		}
	}

	s.habits = habits
	s.order = order
	s.logs = logs
	// seq is now the latest reload, so every marker has been honoured.
	clear(s.settled)
	clear(s.removed)
	ev := s.bumpLocked(Event{Kind: EventReloaded})
	pending := len(s.pending)
	s.mu.Unlock()

	s.logger.Debug("reconciled habits", "seq", seq, "habits", len(order), "pending", pending)
	s.events.Publish(ev)
	return true
}

// AddHabit inserts or replaces a confirmed habit.
func (s *Store) AddHabit(h model.Habit) error {
	if h.ID == "" {
		return apperr.Validationf("id", "must not be empty")
	}
	if !h.Type.Valid() {
		return apperr.Validationf("type", "unknown habit type %q", h.Type)
	}

	s.mu.Lock()
	if _, ok := s.habits[h.ID]; !ok {
		s.order = append(s.order, h.ID)
	}
	s.habits[h.ID] = h
	ev := s.bumpLocked(Event{Kind: EventHabitAdded, HabitID: h.ID})
	s.mu.Unlock()

	s.events.Publish(ev)
	return nil
}

// RemoveHabit removes a habit and its entries optimistically. Pending
// mutations for the habit are abandoned.
func (s *Store) RemoveHabit(habitID string) (*Removal, error) {
	s.mu.Lock()
	h, ok := s.habits[habitID]
	if !ok {
		s.mu.Unlock()
		return nil, apperr.Validationf("habit_id", "unknown habit %q", habitID)
	}

	r := &Removal{Habit: h, index: slices.Index(s.order, habitID)}
	for key, entry := range s.logs {
		if key.habitID != habitID {
			continue
		}
		if m, busy := s.pending[key]; busy && m.prevLog != nil {
			// Restore to the confirmed value, not the optimistic one.
			entry = *m.prevLog
		} else if busy {
			delete(s.logs, key)
			continue
		}
		r.Logs = append(r.Logs, cloneEntry(entry))
		delete(s.logs, key)
	}
	for key, m := range s.pending {
		if key.habitID != habitID {
			continue
		}
		if m.Kind == KindDelete && m.prevLog != nil {
			r.Logs = append(r.Logs, cloneEntry(*m.prevLog))
		}
		delete(s.pending, key)
		m.prevLog = nil
		m.setState(StateRolledBack)
	}
	slices.SortFunc(r.Logs, compareEntries)

	delete(s.habits, habitID)
	if r.index >= 0 {
		s.order = slices.Delete(s.order, r.index, r.index+1)
	}
	s.removals[habitID] = r
	ev := s.bumpLocked(Event{Kind: EventHabitRemoved, HabitID: habitID})
	s.mu.Unlock()

	s.events.Publish(ev)
	return r, nil
}

// CommitRemoval records that the server accepted the delete.
func (s *Store) CommitRemoval(r *Removal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removals[r.Habit.ID] == r {
		delete(s.removals, r.Habit.ID)
		s.removed[r.Habit.ID] = s.reloads[StreamHabits]
	}
}

// RestoreHabit undoes RemoveHabit after the server rejected the delete.
func (s *Store) RestoreHabit(r *Removal) {
	s.mu.Lock()
	id := r.Habit.ID
	if s.removals[id] == r {
		delete(s.removals, id)
	}
	if _, ok := s.habits[id]; !ok {
		s.habits[id] = r.Habit
		idx := min(max(r.index, 0), len(s.order))
		s.order = slices.Insert(s.order, idx, id)
	}
	for _, entry := range r.Logs {
		key := logKey{habitID: id, day: entry.Day}
		if _, ok := s.logs[key]; !ok {
			s.logs[key] = cloneEntry(entry)
		}
	}
	ev := s.bumpLocked(Event{Kind: EventHabitRestored, HabitID: id})
	s.mu.Unlock()

	s.events.Publish(ev)
}

// Reset clears all state, abandons pending mutations and invalidates
// in-flight reloads.
func (s *Store) Reset() {
	s.mu.Lock()
	for _, m := range s.pending {
		m.setState(StateRolledBack)
	}
	for _, m := range s.hivePending {
		m.setState(StateRolledBack)
	}
	s.clearLocked()
	for stream := range s.reloads {
		s.reloads[stream]++
	}
	ev := s.bumpLocked(Event{Kind: EventReset})
	s.mu.Unlock()

	s.logger.Debug("store reset")
	s.events.Publish(ev)
}

// PendingCount returns the number of unsettled mutations.
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending) + len(s.hivePending)
}

// Habit returns a habit by ID.
func (s *Store) Habit(id string) (model.Habit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.habits[id]
	return h, ok
}

// Entry returns the visible entry for (habitID, day).
func (s *Store) Entry(habitID string, day daykey.Key) (model.LogEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.logs[logKey{habitID: habitID, day: day}]
	if !ok {
		return model.LogEntry{}, false
	}
	return cloneEntry(e), true
}

func compareEntries(a, b model.LogEntry) int {
	switch {
	case a.Day < b.Day:
		return -1
	case a.Day > b.Day:
		return 1
	default:
		return 0
	}
}
