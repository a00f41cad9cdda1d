package sequencing

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanDeletion_ClosesGap(t *testing.T) {
	siblings := items("p1", "T1", "T2", "T3")
	remaining := []Item{siblings[0], siblings[2]}

	plan := PlanDeletion(2, remaining)

	assert.Equal(t, []Update{{ID: "T3", Sequence: 2}}, plan)
	assert.Equal(t, map[string]int{"T1": 1, "T3": 2}, sequenceMap(Apply(remaining, plan)))
}

func TestPlanDeletion_Locality(t *testing.T) {
	siblings := items("p1", "a", "b", "c", "d", "e", "f")
	for k := 1; k <= len(siblings); k++ {
		remaining := append(Clone(siblings[:k-1]), siblings[k:]...)
		plan := PlanDeletion(k, remaining)
		after := sequenceMap(Apply(remaining, plan))
		for _, item := range remaining {
			if item.Sequence < k {
				assert.Equal(t, item.Sequence, after[item.ID], "k=%d item %s below removed must not move", k, item.ID)
			} else {
				assert.Equal(t, item.Sequence-1, after[item.ID], "k=%d item %s above removed must shift by -1", k, item.ID)
			}
		}
		for _, u := range plan {
			assert.Greater(t, sequenceMap(remaining)[u.ID], k, "k=%d plan touched %s", k, u.ID)
		}
	}
}

func TestPlanMove_EarlierShiftsRangeUp(t *testing.T) {
	siblings := items("p1", "T1", "T2", "T3", "T4")

	plan := PlanMove(4, 2, siblings)
	after := Apply(siblings, plan)

	assert.Equal(t, []string{"T1", "T4", "T2", "T3"}, ids(after))
	assert.Equal(t, map[string]int{"T1": 1, "T4": 2, "T2": 3, "T3": 4}, sequenceMap(after))
	assert.NotContains(t, ids(updatesAsItems(plan)), "T1")
}

func TestPlanMove_LaterShiftsRangeDown(t *testing.T) {
	siblings := items("p1", "T1", "T2", "T3", "T4", "T5")

	plan := PlanMove(2, 4, siblings)

	assert.ElementsMatch(t, []Update{
		{ID: "T3", Sequence: 2},
		{ID: "T4", Sequence: 3},
		{ID: "T2", Sequence: 4},
	}, plan)
	assert.Equal(t, []string{"T1", "T3", "T4", "T2", "T5"}, ids(Apply(siblings, plan)))
}

func TestPlanMove_SelfTargetIsEmpty(t *testing.T) {
	siblings := items("p1", "T1", "T2", "T3")
	for k := 1; k <= 3; k++ {
		assert.Empty(t, PlanMove(k, k, siblings))
	}
}

func TestPlanMove_ClampsOutOfRangeTarget(t *testing.T) {
	siblings := items("p1", "T1", "T2", "T3")

	assert.Equal(t, []string{"T2", "T3", "T1"}, ids(Apply(siblings, PlanMove(1, 99, siblings))))
	assert.Equal(t, []string{"T3", "T1", "T2"}, ids(Apply(siblings, PlanMove(3, -4, siblings))))
	assert.Empty(t, PlanMove(1, 1, nil))
}

func TestPlanMove_GappedInputMovesByPosition(t *testing.T) {
	siblings := []Item{
		{ID: "A", ScopeID: "p1", Sequence: 1},
		{ID: "B", ScopeID: "p1", Sequence: 3},
		{ID: "C", ScopeID: "p1", Sequence: 5},
	}

	plan := PlanMove(3, 1, siblings)

	assert.ElementsMatch(t, []Update{
		{ID: "A", Sequence: 2},
		{ID: "B", Sequence: 3},
		{ID: "C", Sequence: 1},
	}, plan)
	after := Apply(siblings, plan)
	assert.Equal(t, []string{"C", "A", "B"}, ids(after))
	assert.True(t, IsDense(after))
}

func TestPlanMove_Reversible(t *testing.T) {
	siblings := items("p1", "a", "b", "c", "d", "e")
	for a := 1; a <= 5; a++ {
		for b := 1; b <= 5; b++ {
			moved := Apply(siblings, PlanMove(a, b, siblings))
			restored := Apply(moved, PlanMove(b, a, moved))
			assert.Equal(t, sequenceMap(siblings), sequenceMap(restored), "a=%d b=%d", a, b)
		}
	}
}

func TestPlanInsertion_Appends(t *testing.T) {
	assert.Equal(t, 1, PlanInsertion(nil))

	siblings := items("p1", "a", "b", "c")
	next := PlanInsertion(siblings)
	require.Equal(t, 4, next)

	after := append(Clone(siblings), Item{ID: "d", ScopeID: "p1", Sequence: next})
	assert.True(t, IsDense(after))
	assert.Equal(t, "d", after[len(after)-1].ID)
}

func TestPlanCompaction_HealsGapsAndDuplicates(t *testing.T) {
	damaged := []Item{
		{ID: "a", Sequence: 1},
		{ID: "b", Sequence: 3},
		{ID: "c", Sequence: 3},
		{ID: "d", Sequence: 7},
	}

	plan := PlanCompaction(damaged)
	after := Apply(damaged, plan)

	assert.True(t, IsDense(after))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(after))
	assert.NotContains(t, ids(updatesAsItems(plan)), "a")
}

// Random insert/delete/move sequences must leave the scope dense after
// every step.
func TestRenumber_DensityUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var scope []Item
	nextID := 0

	for step := 0; step < 500; step++ {
		switch op := rng.Intn(3); {
		case op == 0 || len(scope) == 0:
			nextID++
			scope = append(scope, Item{ID: itemName(nextID), Sequence: PlanInsertion(scope)})
		case op == 1:
			victim := scope[rng.Intn(len(scope))]
			remaining := make([]Item, 0, len(scope)-1)
			for _, item := range scope {
				if item.ID != victim.ID {
					remaining = append(remaining, item)
				}
			}
			scope = Apply(remaining, PlanDeletion(victim.Sequence, remaining))
		default:
			from := rng.Intn(len(scope)) + 1
			to := rng.Intn(len(scope)) + 1
			scope = Apply(scope, PlanMove(from, to, scope))
		}
		require.True(t, IsDense(scope), "step %d left scope non-dense: %v", step, sequenceMap(scope))
	}
}

func updatesAsItems(plan []Update) []Item {
	out := make([]Item, 0, len(plan))
	for _, u := range plan {
		out = append(out, Item{ID: u.ID, Sequence: u.Sequence})
	}
	return out
}

func itemName(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	name := ""
	for n > 0 {
		n--
		name = string(letters[n%26]) + name
		n /= 26
	}
	return name
}
