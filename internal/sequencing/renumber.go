package sequencing

// PlanDeletion returns the updates that close the gap left by removing the
// sibling at removed: every sibling above it moves down by one. Siblings
// below removed are not included.
func PlanDeletion(removed int, siblings []Item) []Update {
	plan := make([]Update, 0, len(siblings))
	for _, item := range siblings {
		if item.Sequence > removed {
			plan = append(plan, Update{ID: item.ID, Sequence: item.Sequence - 1})
		}
	}
	return plan
}

// PlanMove returns the updates that move the sibling at position from to
// position to. Positions are 1-based ranks in sequence order, so a gapped
// input still moves the intended item; only the moved item and the siblings
// between the two positions change, and each is written its new rank. Both
// values are clamped into [1, len(siblings)] first.
func PlanMove(from, to int, siblings []Item) []Update {
	n := len(siblings)
	if n == 0 {
		return nil
	}
	from = clamp(from, 1, n)
	to = clamp(to, 1, n)
	if from == to {
		return nil
	}

	ordered := Clone(siblings)
	SortBySequence(ordered)

	plan := make([]Update, 0, abs(to-from)+1)
	for i, item := range ordered {
		pos := i + 1
		switch {
		case pos == from:
			continue
		case from < to && pos > from && pos <= to:
			plan = append(plan, Update{ID: item.ID, Sequence: pos - 1})
		case from > to && pos >= to && pos < from:
			plan = append(plan, Update{ID: item.ID, Sequence: pos + 1})
		}
	}
	return append(plan, Update{ID: ordered[from-1].ID, Sequence: to})
}

// PlanInsertion returns the sequence a newly appended sibling receives.
func PlanInsertion(siblings []Item) int {
	return len(siblings) + 1
}

// PlanCompaction renumbers siblings, in their current order, to a dense
// 1..N. Items already at the right position are left out of the plan.
func PlanCompaction(siblings []Item) []Update {
	ordered := Clone(siblings)
	SortBySequence(ordered)
	var plan []Update
	for i, item := range ordered {
		if item.Sequence != i+1 {
			plan = append(plan, Update{ID: item.ID, Sequence: i + 1})
		}
	}
	return plan
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
