package rulesync

import (
	"sort"
)

// ExistingSegment is one vendor-side rule segment inside a series group:
// the vendor rule id plus the hour window it covers.
type ExistingSegment struct {
	RuleID    string
	StartHour int
}

// DesiredSegment is one desired rule segment inside a series group.
type DesiredSegment[T any] struct {
	StartHour int
	Rule      T
}

// DiffResult is the three-way reconciliation outcome. Every desired segment
// lands in exactly one of Creates/Updates; every existing segment with no
// desired counterpart lands in DeleteIDs.
type DiffResult[T any] struct {
	Creates   []T
	Updates   map[string]T // vendor rule id -> desired rule
	DeleteIDs []string
}

// Diff reconciles existing vendor rules against the desired set. Both maps
// are keyed by the series group identity (datasource + unique key, direction
// included where the vendor splits directions into separate rules).
//
// Matched segments always produce an update, even when content is unchanged;
// the vendor API absorbs no-op updates, and skipping the comparison keeps
// re-sync idempotence trivial to reason about.
//
// When a group's segment counts differ, segments are sorted ascending by
// start hour and paired positionally up to min(count); surplus desired
// segments become creates and surplus existing segments become deletes.
// Shifted window boundaries therefore show up as an update plus a
// create/delete pair rather than a detected rename.
func Diff[T any](existing map[string][]ExistingSegment, desired map[string][]DesiredSegment[T]) DiffResult[T] {
	res := DiffResult[T]{Updates: map[string]T{}}

	for key, want := range desired {
		have := existing[key]
		sortedWant := make([]DesiredSegment[T], len(want))
		copy(sortedWant, want)
		sort.SliceStable(sortedWant, func(i, j int) bool { return sortedWant[i].StartHour < sortedWant[j].StartHour })
		sortedHave := make([]ExistingSegment, len(have))
		copy(sortedHave, have)
		sort.SliceStable(sortedHave, func(i, j int) bool { return sortedHave[i].StartHour < sortedHave[j].StartHour })

		n := len(sortedWant)
		if len(sortedHave) < n {
			n = len(sortedHave)
		}
		for i := 0; i < n; i++ {
			res.Updates[sortedHave[i].RuleID] = sortedWant[i].Rule
		}
		for i := n; i < len(sortedWant); i++ {
			res.Creates = append(res.Creates, sortedWant[i].Rule)
		}
		for i := n; i < len(sortedHave); i++ {
			res.DeleteIDs = append(res.DeleteIDs, sortedHave[i].RuleID)
		}
	}

	for key, have := range existing {
		if _, ok := desired[key]; ok {
			continue
		}
		for _, seg := range have {
			res.DeleteIDs = append(res.DeleteIDs, seg.RuleID)
		}
	}

	sort.Strings(res.DeleteIDs)
	return res
}
