// Package aggregate derives statistics from log store snapshots: streaks,
// heatmap grids, completion rates, hive today-status and leaderboards.
//
// Every function is pure. The day being evaluated is always passed in, so
// identical inputs give identical outputs regardless of wall-clock time.
// Nothing here is cached; callers recompute on demand.
package aggregate
