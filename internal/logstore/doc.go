// Package logstore holds one session's habits, log entries and hive member
// days in memory and implements the optimistic mutation protocol.
//
// # Mutations
//
// Every change a user makes goes through a Mutation handle:
//
//	m, err := store.Apply(habitID, today, 1)   // visible immediately
//	entry, err := gw.LogHabit(ctx, habitID, 1)
//	if err != nil {
//	    return store.Rollback(m, err)           // exact pre-mutation state
//	}
//	store.Confirm(m, entry)                    // server identity installed
//
// While a mutation for a (habit, day) key is pending, further mutations for
// the same key fail with apperr.ErrMutationPending.
//
// # Reloads
//
// Reloads are sequenced per stream (StreamHabits, HiveStream(id)). A
// response whose sequence is older than the latest issued one for its
// stream is discarded. Pending mutations are re-applied over every accepted
// snapshot.
//
// # Observation
//
// Subscribe to Events() for change notifications, or poll Version().
package logstore
