package game

import "testing"

// TestInitObjectivesAssignsSequentialIDs ensures one-time initialization
// assigns IDs starting at 1 and is a no-op on a second call.
func TestInitObjectivesAssignsSequentialIDs(t *testing.T) {
	c := NewContext()
	created := c.InitObjectives([]ObjectiveSeed{
		{Description: "find the lantern"},
		{Description: "gather berries", TargetCount: 3},
	})
	if len(created) != 2 {
		t.Fatalf("expected 2 objectives created, got %d", len(created))
	}
	if created[0].ID != 1 || created[1].ID != 2 {
		t.Fatalf("unexpected ids: %d, %d", created[0].ID, created[1].ID)
	}
	if c.QuestState != QuestInProgress {
		t.Fatalf("quest state = %s, want %s", c.QuestState, QuestInProgress)
	}

	again := c.InitObjectives([]ObjectiveSeed{{Description: "extra"}})
	if again != nil {
		t.Fatalf("second initialization should be a no-op, created %d", len(again))
	}
	if len(c.Objectives) != 2 {
		t.Fatalf("objective list mutated by repeated init: %d", len(c.Objectives))
	}
}

// TestQuestStateCompletedIffAllFinished checks the completion invariant over
// empty, partial and fully finished sets.
func TestQuestStateCompletedIffAllFinished(t *testing.T) {
	if got := ComputeQuestState(nil); got != QuestNotStarted {
		t.Fatalf("empty set state = %s, want %s", got, QuestNotStarted)
	}
	objs := []Objective{
		{ID: 1, Description: "a", Finished: true},
		{ID: 2, Description: "b", Finished: false},
	}
	if got := ComputeQuestState(objs); got != QuestInProgress {
		t.Fatalf("partial set state = %s, want %s", got, QuestInProgress)
	}
	objs[1].Finished = true
	if got := ComputeQuestState(objs); got != QuestCompleted {
		t.Fatalf("finished set state = %s, want %s", got, QuestCompleted)
	}
}

// TestMarkFinishedRejectsCountedObjectives ensures counted objectives cannot
// be completed through the simple status-update path.
func TestMarkFinishedRejectsCountedObjectives(t *testing.T) {
	c := NewContext()
	c.InitObjectives([]ObjectiveSeed{
		{Description: "simple"},
		{Description: "counted", TargetCount: 2},
	})

	updated, rejected, notFound := c.MarkFinished([]int{1, 2, 9})
	if updated != 1 {
		t.Fatalf("updated = %d, want 1", updated)
	}
	if len(rejected) != 1 || rejected[0] != 2 {
		t.Fatalf("rejected = %v, want [2]", rejected)
	}
	if len(notFound) != 1 || notFound[0] != 9 {
		t.Fatalf("notFound = %v, want [9]", notFound)
	}
	if c.Objectives[1].Finished {
		t.Fatalf("counted objective finished through simple path")
	}
}

// TestIncrementProgressClampsAndAutoFinishes verifies clamped increments,
// auto-finish at the target, and idempotence at the boundary.
func TestIncrementProgressClampsAndAutoFinishes(t *testing.T) {
	c := NewContext()
	c.InitObjectives([]ObjectiveSeed{{Description: "gather berries", TargetCount: 3}})

	obj, err := c.IncrementProgress(1, 2)
	if err != nil {
		t.Fatalf("IncrementProgress returned error: %v", err)
	}
	if obj.CurrentCount != 2 || obj.Finished {
		t.Fatalf("after +2: current=%d finished=%v", obj.CurrentCount, obj.Finished)
	}

	obj, err = c.IncrementProgress(1, 5)
	if err != nil {
		t.Fatalf("IncrementProgress returned error: %v", err)
	}
	if obj.CurrentCount != 3 || !obj.Finished {
		t.Fatalf("after clamp: current=%d finished=%v", obj.CurrentCount, obj.Finished)
	}
	if c.QuestState != QuestCompleted {
		t.Fatalf("quest state = %s, want %s", c.QuestState, QuestCompleted)
	}

	// Boundary idempotence: incrementing a finished objective changes nothing.
	obj, err = c.IncrementProgress(1, 1)
	if err != nil {
		t.Fatalf("IncrementProgress returned error: %v", err)
	}
	if obj.CurrentCount != 3 || !obj.Finished {
		t.Fatalf("boundary increment mutated objective: current=%d finished=%v", obj.CurrentCount, obj.Finished)
	}
}

// TestIncrementProgressRejectsSimpleObjectives ensures simple objectives
// cannot be advanced through the counted path.
func TestIncrementProgressRejectsSimpleObjectives(t *testing.T) {
	c := NewContext()
	c.InitObjectives([]ObjectiveSeed{{Description: "simple"}})
	if _, err := c.IncrementProgress(1, 1); err == nil {
		t.Fatalf("expected error incrementing a simple objective")
	}
}

// TestSetObjectivesReopensCompletedQuest exercises the defensive reopen when
// unfinished objectives are added to a completed set.
func TestSetObjectivesReopensCompletedQuest(t *testing.T) {
	c := NewContext()
	c.InitObjectives([]ObjectiveSeed{{Description: "a", Finished: true}})
	if c.QuestState != QuestCompleted {
		t.Fatalf("quest state = %s, want %s", c.QuestState, QuestCompleted)
	}

	c.SetObjectives(append(c.Objectives, Objective{ID: 2, Description: "b"}))
	if c.QuestState != QuestInProgress {
		t.Fatalf("quest state = %s, want %s", c.QuestState, QuestInProgress)
	}
	if c.NextObjectiveID != 3 {
		t.Fatalf("next id = %d, want 3", c.NextObjectiveID)
	}
}

// TestSnapshotProjectsCountedFields ensures target/current counts appear only
// for counted objectives.
func TestSnapshotProjectsCountedFields(t *testing.T) {
	c := NewContext()
	c.InitObjectives([]ObjectiveSeed{
		{Description: "simple"},
		{Description: "counted", TargetCount: 4},
	})
	views := c.Snapshot()
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	if views[0].TargetCount != nil || views[0].CurrentCount != nil {
		t.Fatalf("simple objective carries count fields: %+v", views[0])
	}
	if views[1].TargetCount == nil || *views[1].TargetCount != 4 {
		t.Fatalf("counted objective missing target: %+v", views[1])
	}
	if views[1].CurrentCount == nil || *views[1].CurrentCount != 0 {
		t.Fatalf("counted objective missing current count: %+v", views[1])
	}
}

// TestUpdateSceneRoster recomputes in-scene flags from the declared roster.
func TestUpdateSceneRoster(t *testing.T) {
	c := NewContext()
	c.AddCharacter("aurora", "the hero", true)
	c.AddCharacter("davi", "a friend", false)

	c.UpdateSceneRoster([]string{"davi"})
	if got := c.CharactersInScene(); len(got) != 1 || got[0] != "davi" {
		t.Fatalf("in-scene roster = %v, want [davi]", got)
	}

	// A newly declared name joins the roster in scene.
	c.UpdateSceneRoster([]string{"davi", "stranger", "stranger"})
	if got := c.CharactersInScene(); len(got) != 2 {
		t.Fatalf("in-scene roster = %v, want davi and stranger", got)
	}
	if len(c.Characters) != 3 {
		t.Fatalf("roster size = %d, want 3", len(c.Characters))
	}
}
