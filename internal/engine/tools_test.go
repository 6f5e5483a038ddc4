package engine

import (
	"strings"
	"testing"

	"fableweaver/server/internal/game"
)

// TestDispatchCreateObjectives verifies creation and the init-once
// guard.
func TestDispatchCreateObjectives(t *testing.T) {
	g := game.NewContext()
	args := `{"objectives": [{"description": "Find the key"}, {"description": "Light three braziers", "target_count": 3}]}`

	result := dispatchTool(g, toolCreateObjectives, args)
	if !strings.Contains(result, "created 2") {
		t.Fatalf("result = %q", result)
	}
	if len(g.Objectives) != 2 || !g.Objectives[1].Counted() {
		t.Fatalf("objectives = %+v", g.Objectives)
	}

	result = dispatchTool(g, toolCreateObjectives, args)
	if !strings.Contains(result, "already exist") {
		t.Errorf("second create result = %q", result)
	}
	if len(g.Objectives) != 2 {
		t.Errorf("objectives grew on repeat create: %d", len(g.Objectives))
	}
}

// TestDispatchUpdateObjectives verifies finishing, the counted-objective
// rejection diagnostic, and partial status notes.
func TestDispatchUpdateObjectives(t *testing.T) {
	g := game.NewContext()
	g.InitObjectives([]game.ObjectiveSeed{
		{Description: "Find the key"},
		{Description: "Light three braziers", TargetCount: 3},
	})

	result := dispatchTool(g, toolUpdateObjectives,
		`{"finished_ids": [1, 2], "partial_updates": [{"objective_id": 2, "status": "one brazier lit"}]}`)
	if !strings.Contains(result, "marked 1") {
		t.Errorf("result = %q", result)
	}
	if !strings.Contains(result, "increment_objective_progress") {
		t.Errorf("counted rejection missing from result: %q", result)
	}
	if !g.Objectives[0].Finished || g.Objectives[1].Finished {
		t.Errorf("objectives = %+v", g.Objectives)
	}
	if g.Objectives[1].PartialStatus != "one brazier lit" {
		t.Errorf("partial status = %q", g.Objectives[1].PartialStatus)
	}
}

// TestDispatchIncrementProgress verifies counted progress with the
// default amount and auto-finish.
func TestDispatchIncrementProgress(t *testing.T) {
	g := game.NewContext()
	g.InitObjectives([]game.ObjectiveSeed{
		{Description: "Light three braziers", TargetCount: 3},
	})

	dispatchTool(g, toolIncrementProgress, `{"objective_id": 1}`)
	result := dispatchTool(g, toolIncrementProgress, `{"objective_id": 1, "amount": 5}`)
	if !strings.Contains(result, "progress 3/3") || !strings.Contains(result, "finished=true") {
		t.Errorf("result = %q", result)
	}
	if g.QuestState != game.QuestCompleted {
		t.Errorf("quest state = %s, want completed", g.QuestState)
	}
}

// TestDispatchUnknownTool verifies an unknown name returns an error
// string instead of panicking.
func TestDispatchUnknownTool(t *testing.T) {
	g := game.NewContext()
	result := dispatchTool(g, "summon_dragon", `{}`)
	if !strings.Contains(result, "unknown tool") {
		t.Errorf("result = %q", result)
	}
}
