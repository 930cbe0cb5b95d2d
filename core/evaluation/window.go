package evaluation

import (
	"sort"
	"time"
)

// DefaultEditWindow is how long after submission an evaluation is considered correctable.
const DefaultEditWindow = 12 * time.Hour

// IsEditable reports whether an evaluation created at createdAt may still be corrected at now.
// It is advisory: records are never updated in place.
func IsEditable(createdAt, now time.Time, window time.Duration) bool {
	return now.Sub(createdAt) < window
}

func EditDeadline(createdAt time.Time, window time.Duration) time.Time {
	return createdAt.Add(window)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
