package recovery

import (
	"sort"
	"time"
)

// selectEvictions is a pure function deciding which point IDs should be
// dropped from the in-memory index, per spec.md §4.3 "Cleanup of old
// points": points past retention are always eligible; beyond that,
// oldest-by-timestamp points are evicted until the count is within
// maxPoints. Kept pure (no disk I/O) in the same spirit as the
// teacher's pure dag.GetReadyTasks, so it is unit-testable without a
// filesystem.
func selectEvictions(points []RecoveryPoint, maxPoints int, retention time.Duration, now time.Time) []string {
	var evict []string
	keep := make([]RecoveryPoint, 0, len(points))

	if retention > 0 {
		for _, p := range points {
			if now.Sub(p.Timestamp) > retention {
				evict = append(evict, p.ID)
			} else {
				keep = append(keep, p)
			}
		}
	} else {
		keep = append(keep, points...)
	}

	if maxPoints <= 0 || len(keep) <= maxPoints {
		return evict
	}

	sorted := make([]RecoveryPoint, len(keep))
	copy(sorted, keep)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	excess := len(sorted) - maxPoints
	for i := 0; i < excess; i++ {
		evict = append(evict, sorted[i].ID)
	}
	return evict
}
