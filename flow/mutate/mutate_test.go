package mutate

import (
	"testing"

	"flowrunner/flow"
)

func sampleSteps() []flow.Step {
	return []flow.Step{
		{ID: "a", Name: "A", Kind: flow.KindRequest},
		{
			ID:   "c",
			Name: "C",
			Kind: flow.KindCondition,
			ThenSteps: []flow.Step{
				{ID: "l", Name: "L", Kind: flow.KindLoop,
					LoopSteps: []flow.Step{
						{ID: "r", Name: "R", Kind: flow.KindRequest},
					}},
			},
		},
		{ID: "b", Name: "B", Kind: flow.KindRequest},
	}
}

func TestFindStepInfo_Nested(t *testing.T) {
	info := FindStepInfo(sampleSteps(), "r")
	if !info.Found {
		t.Fatal("expected to find nested step r")
	}
	if len(info.Path) != 2 {
		t.Fatalf("expected path length 2, got %d: %+v", len(info.Path), info.Path)
	}
	if info.Path[0].StepID != "c" || info.Path[0].Branch != flow.BranchThen {
		t.Errorf("unexpected first path point %+v", info.Path[0])
	}
	if info.Path[1].StepID != "l" || info.Path[1].Branch != flow.BranchLoop {
		t.Errorf("unexpected second path point %+v", info.Path[1])
	}
}

func TestAddNested(t *testing.T) {
	steps := sampleSteps()
	newStep := flow.Step{ID: "new", Name: "New", Kind: flow.KindRequest}
	updated := AddNested(steps, "c", flow.BranchElse, newStep)

	info := FindStepInfo(updated, "new")
	if !info.Found {
		t.Fatal("expected new step inserted")
	}
	if info.Path[0].Branch != flow.BranchElse {
		t.Errorf("expected else branch, got %+v", info.Path)
	}
}

func TestDelete_TopLevelAndNested(t *testing.T) {
	steps := sampleSteps()
	updated := Delete(steps, "a")
	if len(updated) != 2 {
		t.Fatalf("expected 2 top-level steps after delete, got %d", len(updated))
	}

	updated2 := Delete(steps, "r")
	info := FindStepInfo(updated2, "r")
	if info.Found {
		t.Fatal("expected r to be removed from nested loop")
	}
}

func TestDelete_Unchanged(t *testing.T) {
	steps := sampleSteps()
	updated := Delete(steps, "does-not-exist")
	if len(updated) != len(steps) {
		t.Fatalf("expected unchanged slice, got len %d", len(updated))
	}
}

func TestMove_CycleRejected(t *testing.T) {
	steps := sampleSteps()
	_, ok := Move(steps, "c", "r", flow.PositionBefore)
	if ok {
		t.Fatal("expected move to be rejected: r is inside c's subtree")
	}
}

func TestMove_SameSourceTargetRejected(t *testing.T) {
	steps := sampleSteps()
	_, ok := Move(steps, "a", "a", flow.PositionBefore)
	if ok {
		t.Fatal("expected move to be rejected: source == target")
	}
}

func TestMove_SiblingReorder(t *testing.T) {
	steps := sampleSteps()
	updated, ok := Move(steps, "a", "b", flow.PositionAfter)
	if !ok {
		t.Fatal("expected move to succeed")
	}
	ids := make([]string, len(updated))
	for i, s := range updated {
		ids[i] = s.ID
	}
	if ids[len(ids)-1] != "a" {
		t.Errorf("expected a to be last, got %v", ids)
	}
}

func TestClone_AssignsFreshIDsRecursively(t *testing.T) {
	steps := sampleSteps()
	updated := Clone(steps, "c", flow.Step{Name: "C copy", Kind: flow.KindCondition})

	if len(updated) != 4 {
		t.Fatalf("expected 4 top-level steps, got %d", len(updated))
	}
	clone := updated[2]
	if clone.ID == "c" || clone.Name != "C copy" {
		t.Fatalf("unexpected clone %+v", clone)
	}
	if len(clone.ThenSteps) != 1 || clone.ThenSteps[0].ID == "l" {
		t.Fatalf("expected cloned subtree with fresh IDs, got %+v", clone.ThenSteps)
	}
	nestedLoop := clone.ThenSteps[0]
	if len(nestedLoop.LoopSteps) != 1 || nestedLoop.LoopSteps[0].ID == "r" {
		t.Fatalf("expected deeply nested fresh ID, got %+v", nestedLoop.LoopSteps)
	}
}
