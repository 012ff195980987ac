// ABOUTME: Hive member-day state in the log store
// ABOUTME: Same optimistic protocol as habit logs, with set-value semantics per member and day

package logstore

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/venkateshthallam/habithive/internal/apperr"
	"github.com/venkateshthallam/habithive/internal/daykey"
	"github.com/venkateshthallam/habithive/internal/model"
)

func hiveTarget(d model.HiveDetail) int {
	if d.Target > 0 {
		return d.Target
	}
	return max(d.Hive.TargetPerDay, 1)
}

// ReconcileHive replaces one hive's detail and member days with a server
// snapshot taken under sequence seq of the hive's stream. Pending member-day
// mutations for the hive win over the snapshot, and member days confirmed
// after seq was issued keep their local value. It returns false, changing
// nothing, when a newer reload of the hive has been issued since seq.
func (s *Store) ReconcileHive(seq uint64, detail model.HiveDetail) bool {
	hiveID := detail.Hive.ID
	stream := HiveStream(hiveID)

	s.mu.Lock()
	if latest := s.reloads[stream]; seq < latest {
		s.mu.Unlock()
		s.logger.Debug("discarding stale hive reload", "hive_id", hiveID, "seq", seq, "latest", latest)
		return false
	}

	meta := detail
	meta.Target = hiveTarget(detail)
	meta.Members = slices.Clone(detail.Members)
	meta.RecentActivity = slices.Clone(detail.RecentActivity)
	meta.MemberDays = nil
	if _, known := s.hives[hiveID]; !known {
		s.hiveOrder = append(s.hiveOrder, hiveID)
	}
	s.hives[hiveID] = meta

	kept := make(map[hiveDayKey]*model.HiveMemberDay)
	for key, at := range s.hiveSettled {
		if key.hiveID != hiveID {
			continue
		}
		if at >= seq {
			row, ok := s.hiveDays[key]
			kept[key] = hiveDayPtr(row, ok)
		}
		delete(s.hiveSettled, key)
	}

	for key := range s.hiveDays {
		if key.hiveID == hiveID {
			delete(s.hiveDays, key)
		}
	}
	for _, row := range detail.MemberDays {
		row.HiveID = hiveID
		s.hiveDays[hiveDayKey{hiveID: hiveID, userID: row.UserID, day: row.Day}] = row
	}
	for key, row := range kept {
		if row == nil {
			delete(s.hiveDays, key)
		} else {
			s.hiveDays[key] = *row
		}
	}

	for key, m := range s.hivePending {
		if key.hiveID != hiveID {
			continue
		}
		snap, ok := s.hiveDays[key]
		m.prevHive = hiveDayPtr(snap, ok)
		s.hiveDays[key] = s.optimisticHiveDay(m, meta)
	}

	ev := s.bumpLocked(Event{Kind: EventHiveReloaded, HiveID: hiveID})
	s.mu.Unlock()

	s.events.Publish(ev)
	return true
}

func (s *Store) optimisticHiveDay(m *Mutation, meta model.HiveDetail) model.HiveMemberDay {
	return model.HiveMemberDay{
		HiveID: m.HiveID,
		UserID: m.UserID,
		Day:    m.Day,
		Value:  m.Value,
		Done:   m.Value >= hiveTarget(meta),
	}
}

// ApplyHiveDay optimistically sets userID's value for day in a hive. It
// fails with apperr.ErrMutationPending while another mutation for the same
// member and day is pending.
func (s *Store) ApplyHiveDay(hiveID, userID string, day daykey.Key, value int) (*Mutation, error) {
	switch {
	case hiveID == "":
		return nil, apperr.Validationf("hive_id", "must not be empty")
	case userID == "":
		return nil, apperr.Validationf("user_id", "must not be empty")
	case day.IsZero():
		return nil, apperr.Validationf("day", "must not be empty")
	case value < 0:
		return nil, apperr.Validationf("value", "must be >= 0, got %d", value)
	}

	s.mu.Lock()
	meta, ok := s.hives[hiveID]
	if !ok {
		s.mu.Unlock()
		return nil, apperr.Validationf("hive_id", "unknown hive %q", hiveID)
	}
	key := hiveDayKey{hiveID: hiveID, userID: userID, day: day}
	if _, busy := s.hivePending[key]; busy {
		s.mu.Unlock()
		return nil, fmt.Errorf("hive %s on %s: %w", hiveID, day, apperr.ErrMutationPending)
	}

	existing, had := s.hiveDays[key]
	m := &Mutation{
		ID:       uuid.NewString(),
		Kind:     KindUpsert,
		HiveID:   hiveID,
		UserID:   userID,
		Day:      day,
		Value:    value,
		prevHive: hiveDayPtr(existing, had),
	}
	m.setState(StateApplied)
	s.hivePending[key] = m
	s.hiveDays[key] = s.optimisticHiveDay(m, meta)
	ev := s.bumpLocked(Event{Kind: EventApplied, HiveID: hiveID, Day: day})
	s.mu.Unlock()

	s.logger.Debug("mutation applied", "mutation", m.String(), "id", m.ID)
	s.events.Publish(ev)
	return m, nil
}

// ConfirmHiveDay settles a member-day mutation. The local value is kept;
// a server row that disagrees is logged. Confirming twice is a no-op.
func (s *Store) ConfirmHiveDay(m *Mutation, server model.HiveMemberDay) error {
	if m == nil || !m.IsHive() {
		return apperr.Validationf("mutation", "not a hive day mutation")
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

	key := m.hiveKey()
	delete(s.hivePending, key)
	if meta, ok := s.hives[m.HiveID]; ok {
		s.hiveDays[key] = s.optimisticHiveDay(m, meta)
	}
	s.hiveSettled[key] = s.reloads[HiveStream(m.HiveID)]
	m.prevHive = nil
	m.setState(StateConfirmed)
	ev := s.bumpLocked(Event{Kind: EventConfirmed, HiveID: m.HiveID, Day: m.Day})
	s.mu.Unlock()

	if server.Value != m.Value || (!server.Day.IsZero() && server.Day != m.Day) {
		s.logger.Warn("server recorded a different hive day",
			"hive_id", m.HiveID,
			"local_day", m.Day, "server_day", server.Day,
			"local_value", m.Value, "server_value", server.Value)
	}
	s.events.Publish(ev)
	return nil
}

// RollbackHiveDay restores the member day from before m and returns cause
// wrapped with the mutation's key.
func (s *Store) RollbackHiveDay(m *Mutation, cause error) error {
	if cause == nil {
		cause = errors.New("rolled back")
	}
	if m == nil || !m.IsHive() {
		return cause
	}

	s.mu.Lock()
	if !m.Pending() {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", m, cause)
	}

	key := m.hiveKey()
	delete(s.hivePending, key)
	if m.prevHive == nil {
		delete(s.hiveDays, key)
	} else {
		s.hiveDays[key] = *m.prevHive
	}
	m.prevHive = nil
	m.setState(StateRolledBack)
	ev := s.bumpLocked(Event{Kind: EventRolledBack, HiveID: m.HiveID, Day: m.Day})
	s.mu.Unlock()

	s.logger.Info("mutation rolled back", "mutation", m.String(), "error", cause)
	s.events.Publish(ev)
	return fmt.Errorf("%s: %w", m, cause)
}

// hiveDetailLocked assembles a hive with its member days sorted by day then
// user. The caller holds mu.
func (s *Store) hiveDetailLocked(hiveID string) (model.HiveDetail, bool) {
	meta, ok := s.hives[hiveID]
	if !ok {
		return model.HiveDetail{}, false
	}
	detail := meta
	detail.Members = slices.Clone(meta.Members)
	detail.RecentActivity = slices.Clone(meta.RecentActivity)
	detail.MemberDays = nil
	for key, row := range s.hiveDays {
		if key.hiveID == hiveID {
			detail.MemberDays = append(detail.MemberDays, row)
		}
	}
	slices.SortFunc(detail.MemberDays, func(a, b model.HiveMemberDay) int {
		if c := strings.Compare(string(a.Day), string(b.Day)); c != 0 {
			return c
		}
		return strings.Compare(a.UserID, b.UserID)
	})
	return detail, true
}

// Hive returns a hive with its visible member days.
func (s *Store) Hive(hiveID string) (model.HiveDetail, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hiveDetailLocked(hiveID)
}

// RemoveHive drops a hive and its member days. Pending member-day
// mutations are abandoned and in-flight reloads of the hive are discarded.
// It reports whether the hive was known.
func (s *Store) RemoveHive(hiveID string) bool {
	s.mu.Lock()
	_, known := s.hives[hiveID]
	delete(s.hives, hiveID)
	s.hiveOrder = slices.DeleteFunc(s.hiveOrder, func(id string) bool { return id == hiveID })
	for key := range s.hiveDays {
		if key.hiveID == hiveID {
			delete(s.hiveDays, key)
		}
	}
	for key, m := range s.hivePending {
		if key.hiveID == hiveID {
			delete(s.hivePending, key)
			m.prevHive = nil
			m.setState(StateRolledBack)
		}
	}
	for key := range s.hiveSettled {
		if key.hiveID == hiveID {
			delete(s.hiveSettled, key)
		}
	}
	s.reloads[HiveStream(hiveID)]++
	ev := s.bumpLocked(Event{Kind: EventHiveRemoved, HiveID: hiveID})
	s.mu.Unlock()

	s.events.Publish(ev)
	return known
}
