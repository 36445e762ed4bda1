package balancer

// Entry bundles an item with its configured weight and current display count.
type Entry[T any] struct {
	Item     T
	Weight   int
	Displays int
}

// Pick selects the most under-displayed item relative to its weight share.
//
// For every entry with a positive weight the expected display count is
// totalDisplays * weight / totalWeight; the entry with the largest
// (expected - displays) wins. Ties go to the earliest entry. Entries with
// weight <= 0 are never picked; ok is false when none remain.
func Pick[T any](entries []Entry[T]) (item T, ok bool) {
	var totalWeight, totalDisplays int
	for _, e := range entries {
		if e.Weight <= 0 {
			continue
		}
		totalWeight += e.Weight
		totalDisplays += e.Displays
	}
	if totalWeight == 0 {
		return item, false
	}

	best := -1
	var bestDeficit float64
	for i, e := range entries {
		if e.Weight <= 0 {
			continue
		}
		expected := float64(totalDisplays) * float64(e.Weight) / float64(totalWeight)
		deficit := expected - float64(e.Displays)
		if best < 0 || deficit > bestDeficit {
			best, bestDeficit = i, deficit
		}
	}
	return entries[best].Item, true
}
