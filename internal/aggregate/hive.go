// ABOUTME: Hive today-status and cross-hive leaderboard
// ABOUTME: Pure functions over hive details; ties are broken deterministically

package aggregate

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/venkateshthallam/habithive/internal/daykey"
	"github.com/venkateshthallam/habithive/internal/model"
)

// DefaultLeaderboardSize is used when ComputeLeaderboard gets a non-positive limit.
const DefaultLeaderboardSize = 5

// MemberStatus is one member's progress for a day.
type MemberStatus string

const (
	StatusCompleted MemberStatus = "completed"
	StatusPartial   MemberStatus = "partial"
	StatusPending   MemberStatus = "pending"
)

// MemberToday is one member's row in a HiveTodayStatus.
type MemberToday struct {
	UserID      string
	DisplayName string
	Value       int
	Status      MemberStatus
}

// HiveTodayStatus summarizes a hive for one day.
type HiveTodayStatus struct {
	Day       daykey.Key
	Target    int
	Members   []MemberToday
	Completed int
	Partial   int
	Pending   int
	// CompletionRate is mean(min(value/target, 1)) * 100, 0 with no members.
	CompletionRate float64
}

// Total is the number of members.
func (s HiveTodayStatus) Total() int {
	return len(s.Members)
}

// RoundedRate is CompletionRate rounded half away from zero.
func (s HiveTodayStatus) RoundedRate() int {
	return int(math.Round(s.CompletionRate))
}

// StatusOf returns userID's status, or pending when not a member.
func (s HiveTodayStatus) StatusOf(userID string) MemberStatus {
	for _, m := range s.Members {
		if m.UserID == userID {
			return m.Status
		}
	}
	return StatusPending
}

// ComputeHiveTodayStatus classifies each member's value for day against
// target. Members keep their input order and a user listed twice counts
// once; member days for other days or non-members are ignored.
func ComputeHiveTodayStatus(members []model.HiveMember, memberDays []model.HiveMemberDay, day daykey.Key, target int) HiveTodayStatus {
	target = max(target, 1)

	values := make(map[string]int, len(members))
	for _, d := range memberDays {
		if d.Day == day {
			values[d.UserID] = d.Value
		}
	}

	status := HiveTodayStatus{Day: day, Target: target, Members: make([]MemberToday, 0, len(members))}
	var ratioSum float64
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if seen[m.UserID] {
			continue
		}
		seen[m.UserID] = true
		value := max(values[m.UserID], 0)
		row := MemberToday{UserID: m.UserID, DisplayName: m.DisplayName, Value: value}
		switch {
		case value >= target:
			row.Status = StatusCompleted
			status.Completed++
		case value > 0:
			row.Status = StatusPartial
			status.Partial++
		default:
			row.Status = StatusPending
			status.Pending++
		}
		ratioSum += min(float64(value)/float64(target), 1)
		status.Members = append(status.Members, row)
	}
	if n := len(status.Members); n > 0 {
		status.CompletionRate = ratioSum / float64(n) * 100
	}
	return status
}

// LeaderboardEntry ranks one user across all hives.
type LeaderboardEntry struct {
	UserID         string
	DisplayName    string
	CompletedToday int
	TotalHives     int
}

// ComputeLeaderboard ranks every member of hives by how many hives they
// completed on day. Order is CompletedToday descending, then DisplayName
// and UserID ascending (ordinal). A non-positive limit means
// DefaultLeaderboardSize.
func ComputeLeaderboard(hives []model.HiveDetail, day daykey.Key, limit int) []LeaderboardEntry {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}

	byUser := make(map[string]*LeaderboardEntry)
	for _, h := range hives {
		target := h.Target
		if target <= 0 {
			target = h.Hive.TargetPerDay
		}
		status := ComputeHiveTodayStatus(h.Members, h.MemberDays, day, target)

		for _, m := range status.Members {
			entry, ok := byUser[m.UserID]
			if !ok {
				entry = &LeaderboardEntry{UserID: m.UserID}
				byUser[m.UserID] = entry
			}
			if entry.DisplayName == "" {
				entry.DisplayName = m.DisplayName
			}
			entry.TotalHives++
			if m.Status == StatusCompleted {
				entry.CompletedToday++
			}
		}
	}

	board := make([]LeaderboardEntry, 0, len(byUser))
	for _, e := range byUser {
		board = append(board, *e)
	}
	slices.SortFunc(board, func(a, b LeaderboardEntry) int {
		if c := cmp.Compare(b.CompletedToday, a.CompletedToday); c != 0 {
			return c
		}
		if c := strings.Compare(a.DisplayName, b.DisplayName); c != 0 {
			return c
		}
		return strings.Compare(a.UserID, b.UserID)
	})

	if len(board) > limit {
		board = board[:limit]
	}
	return board
}
