package migration

import "sort"

// Sort returns a new slice of units sorted by ID in lexicographic order,
// which is also their chronological order.
func Sort(units []Unit) []Unit {
	sorted := make([]Unit, len(units))
	copy(sorted, units)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	return sorted
}

// Pending returns the units whose id is not in applied, in ascending order.
func Pending(units []Unit, applied map[string]struct{}) []Unit {
	var pending []Unit

	for _, u := range Sort(units) {
		if _, ok := applied[u.ID]; !ok {
			pending = append(pending, u)
		}
	}

	return pending
}
