// Package mutate implements the structural operations on a flow's step
// tree: nested insertion, lookup, move (with cycle prevention), delete, and
// clone. Every operation returns a new tree (or the original reference when
// nothing changed) without touching any dirty-state flag — that is the
// editor host's concern, not the model's.
//
// Grounded on the teacher repo's use of github.com/google/uuid for fresh
// IDs (runtime/execution.go's uuid.New()), generalized here to recursively
// re-ID an entire cloned subtree.
package mutate

import (
	"github.com/google/uuid"

	"flowrunner/flow"
)

// Point and Branch are re-exported from flow for callers that only import
// mutate.
type (
	Point  = flow.Point
	Branch = flow.Branch
)

// AddNested appends stepData into parentID's then/else/loop container,
// selected by branch.
func AddNested(steps []flow.Step, parentID string, branch flow.Branch, stepData flow.Step) []flow.Step {
	return mapSteps(steps, func(s flow.Step) flow.Step {
		if s.ID != parentID {
			return s
		}
		switch branch {
		case flow.BranchThen:
			s.ThenSteps = append(append([]flow.Step{}, s.ThenSteps...), stepData)
		case flow.BranchElse:
			s.ElseSteps = append(append([]flow.Step{}, s.ElseSteps...), stepData)
		case flow.BranchLoop:
			s.LoopSteps = append(append([]flow.Step{}, s.LoopSteps...), stepData)
		}
		return s
	})
}

// StepInfo is the result of FindStepInfo: the step itself, a reference to
// the array that directly contains it, its index in that array, and the
// path of containers walked to reach it (for ancestry / cycle checks).
type StepInfo struct {
	Step         flow.Step
	ParentSteps  []flow.Step
	Index        int
	Path         []Point
	Found        bool
}

// FindStepInfo searches steps (and every nested branch) for id, depth-first.
func FindStepInfo(steps []flow.Step, id string) StepInfo {
	return findStepInfo(steps, id, nil)
}

func findStepInfo(steps []flow.Step, id string, path []Point) StepInfo {
	for i, s := range steps {
		if s.ID == id {
			return StepInfo{Step: s, ParentSteps: steps, Index: i, Path: path, Found: true}
		}
		switch s.Kind {
		case flow.KindCondition:
			if info := findStepInfo(s.ThenSteps, id, append(path, Point{StepID: s.ID, Branch: flow.BranchThen})); info.Found {
				return info
			}
			if info := findStepInfo(s.ElseSteps, id, append(path, Point{StepID: s.ID, Branch: flow.BranchElse})); info.Found {
				return info
			}
		case flow.KindLoop:
			if info := findStepInfo(s.LoopSteps, id, append(path, Point{StepID: s.ID, Branch: flow.BranchLoop})); info.Found {
				return info
			}
		}
	}
	return StepInfo{}
}

// isDescendant reports whether candidateID names a step within the subtree
// rooted at ancestorID (ancestorID itself counts).
func isDescendant(steps []flow.Step, ancestorID, candidateID string) bool {
	for _, s := range steps {
		if s.ID == ancestorID {
			return containsID(s, candidateID)
		}
		if found := isDescendant(childContainers(s), ancestorID, candidateID); found {
			return true
		}
	}
	return false
}

func childContainers(s flow.Step) []flow.Step {
	switch s.Kind {
	case flow.KindCondition:
		return append(append([]flow.Step{}, s.ThenSteps...), s.ElseSteps...)
	case flow.KindLoop:
		return append([]flow.Step{}, s.LoopSteps...)
	}
	return nil
}

func containsID(s flow.Step, id string) bool {
	if s.ID == id {
		return true
	}
	for _, c := range childContainers(s) {
		if containsID(c, id) {
			return true
		}
	}
	return false
}

// Move relocates sourceID to just before/after targetID. It rejects (and
// returns the original steps unchanged, ok=false) if source == target or if
// target lies in the subtree rooted at source (cycle prevention).
func Move(steps []flow.Step, sourceID, targetID string, position flow.Position) ([]flow.Step, bool) {
	if sourceID == targetID {
		return steps, false
	}
	if isDescendant(steps, sourceID, targetID) {
		return steps, false
	}

	sourceInfo := FindStepInfo(steps, sourceID)
	if !sourceInfo.Found {
		return steps, false
	}
	sourceStep := sourceInfo.Step
	sourceIndex := sourceInfo.Index

	removed := Delete(steps, sourceID)

	targetInfo := FindStepInfo(removed, targetID)
	if !targetInfo.Found {
		// Target is not in the tree: put source back at its original
		// index in its original container.
		return insertAtOriginalSlot(removed, sourceInfo, sourceStep, sourceIndex), true
	}

	insertIndex := targetInfo.Index
	if position == flow.PositionAfter {
		insertIndex++
	}
	updated := insertIntoContainer(removed, targetInfo, insertIndex, sourceStep)
	return updated, true
}

// insertAtOriginalSlot re-inserts sourceStep into the same container array
// it was removed from, at its original index, for the case where the target
// step cannot be found after the source was removed.
func insertAtOriginalSlot(steps []flow.Step, sourceInfo StepInfo, sourceStep flow.Step, index int) []flow.Step {
	if len(sourceInfo.Path) == 0 {
		return spliceAt(steps, index, sourceStep)
	}
	return mapSteps(steps, func(s flow.Step) flow.Step {
		last := sourceInfo.Path[len(sourceInfo.Path)-1]
		if s.ID != last.StepID {
			return s
		}
		switch last.Branch {
		case flow.BranchThen:
			s.ThenSteps = spliceAt(s.ThenSteps, index, sourceStep)
		case flow.BranchElse:
			s.ElseSteps = spliceAt(s.ElseSteps, index, sourceStep)
		case flow.BranchLoop:
			s.LoopSteps = spliceAt(s.LoopSteps, index, sourceStep)
		}
		return s
	})
}

func insertIntoContainer(steps []flow.Step, info StepInfo, index int, stepData flow.Step) []flow.Step {
	if len(info.Path) == 0 {
		return spliceAt(steps, index, stepData)
	}
	return mapSteps(steps, func(s flow.Step) flow.Step {
		last := info.Path[len(info.Path)-1]
		if s.ID != last.StepID {
			return s
		}
		switch last.Branch {
		case flow.BranchThen:
			s.ThenSteps = spliceAt(s.ThenSteps, index, stepData)
		case flow.BranchElse:
			s.ElseSteps = spliceAt(s.ElseSteps, index, stepData)
		case flow.BranchLoop:
			s.LoopSteps = spliceAt(s.LoopSteps, index, stepData)
		}
		return s
	})
}

func spliceAt(steps []flow.Step, index int, stepData flow.Step) []flow.Step {
	if index < 0 {
		index = 0
	}
	if index > len(steps) {
		index = len(steps)
	}
	out := make([]flow.Step, 0, len(steps)+1)
	out = append(out, steps[:index]...)
	out = append(out, stepData)
	out = append(out, steps[index:]...)
	return out
}

// Delete returns steps with stepID removed from wherever it appears in the
// tree. If stepID is not present, the original slice reference is returned
// unchanged.
func Delete(steps []flow.Step, stepID string) []flow.Step {
	changed := false
	out := make([]flow.Step, 0, len(steps))
	for _, s := range steps {
		if s.ID == stepID {
			changed = true
			continue
		}
		ns := s
		switch s.Kind {
		case flow.KindCondition:
			newThen := Delete(s.ThenSteps, stepID)
			newElse := Delete(s.ElseSteps, stepID)
			if !sameSlice(newThen, s.ThenSteps) || !sameSlice(newElse, s.ElseSteps) {
				ns.ThenSteps = newThen
				ns.ElseSteps = newElse
				changed = true
			}
		case flow.KindLoop:
			newLoop := Delete(s.LoopSteps, stepID)
			if !sameSlice(newLoop, s.LoopSteps) {
				ns.LoopSteps = newLoop
				changed = true
			}
		}
		out = append(out, ns)
	}
	if !changed {
		return steps
	}
	return out
}

func sameSlice(a, b []flow.Step) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

// Clone duplicates originalID's entire subtree and inserts the copy
// immediately after it, at the same depth. newStepData's Name overrides the
// clone's display name; every ID throughout the duplicated subtree is
// freshly generated.
func Clone(steps []flow.Step, originalID string, newStepData flow.Step) []flow.Step {
	info := FindStepInfo(steps, originalID)
	if !info.Found {
		return steps
	}
	duplicate := info.Step
	if newStepData.Name != "" {
		duplicate.Name = newStepData.Name
	}
	clone := AssignNewIDsRecursive(duplicate)
	return insertIntoContainer(steps, info, info.Index+1, clone)
}

// AssignNewIDsRecursive returns a copy of s (and every nested step) with
// freshly generated IDs throughout.
func AssignNewIDsRecursive(s flow.Step) flow.Step {
	out := s
	out.ID = uuid.New().String()
	switch s.Kind {
	case flow.KindCondition:
		out.ThenSteps = assignNewIDsSlice(s.ThenSteps)
		out.ElseSteps = assignNewIDsSlice(s.ElseSteps)
	case flow.KindLoop:
		out.LoopSteps = assignNewIDsSlice(s.LoopSteps)
	}
	return out
}

func assignNewIDsSlice(steps []flow.Step) []flow.Step {
	out := make([]flow.Step, len(steps))
	for i, s := range steps {
		out[i] = AssignNewIDsRecursive(s)
	}
	return out
}

// mapSteps applies fn to every step reachable from steps, depth-first,
// rebuilding then/else/loop containers along the way.
func mapSteps(steps []flow.Step, fn func(flow.Step) flow.Step) []flow.Step {
	out := make([]flow.Step, len(steps))
	for i, s := range steps {
		switch s.Kind {
		case flow.KindCondition:
			s.ThenSteps = mapSteps(s.ThenSteps, fn)
			s.ElseSteps = mapSteps(s.ElseSteps, fn)
		case flow.KindLoop:
			s.LoopSteps = mapSteps(s.LoopSteps, fn)
		}
		out[i] = fn(s)
	}
	return out
}
