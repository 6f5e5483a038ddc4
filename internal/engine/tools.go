package engine

import (
	"encoding/json"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"fableweaver/server/internal/game"
)

const (
	toolCreateObjectives  = "create_game_objectives"
	toolUpdateObjectives  = "update_objective_status"
	toolIncrementProgress = "increment_objective_progress"
	toolGetObjectives     = "get_objectives"
)

// objectiveTools is the tool schema handed to the chat model on every
// turn. The model drives quest state exclusively through these calls.
func objectiveTools() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolCreateObjectives,
				Description: "Create the initial quest objectives for this story. Call exactly once, on the first story turn. Ignored if objectives already exist.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"objectives": {
							"type": "array",
							"items": {
								"type": "object",
								"properties": {
									"description": {"type": "string"},
									"target_count": {"type": "integer", "description": "Set above zero to make this a counted objective that completes via progress increments."}
								},
								"required": ["description"]
							}
						}
					},
					"required": ["objectives"]
				}`),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolUpdateObjectives,
				Description: "Mark one or more simple objectives as finished by id, and optionally attach free-text partial progress notes. Counted objectives cannot be finished this way; use increment_objective_progress instead.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"finished_ids": {"type": "array", "items": {"type": "integer"}},
						"partial_updates": {
							"type": "array",
							"items": {
								"type": "object",
								"properties": {
									"objective_id": {"type": "integer"},
									"status": {"type": "string"}
								},
								"required": ["objective_id", "status"]
							}
						}
					}
				}`),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolIncrementProgress,
				Description: "Advance a counted objective by some amount. The objective finishes automatically when its target count is reached.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"objective_id": {"type": "integer"},
						"amount": {"type": "integer", "description": "Defaults to 1."}
					},
					"required": ["objective_id"]
				}`),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolGetObjectives,
				Description: "List the current objectives with their ids and completion state.",
				Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
			},
		},
	}
}

// dispatchTool executes a single tool call against the game context and
// returns the result string sent back to the model. Unknown tools and
// bad arguments produce error strings rather than aborting the turn;
// the model sees the failure and can correct itself.
func dispatchTool(gameCtx *game.Context, name, arguments string) string {
	switch name {
	case toolCreateObjectives:
		var args struct {
			Objectives []struct {
				Description string `json:"description"`
				TargetCount int    `json:"target_count"`
			} `json:"objectives"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return fmt.Sprintf("error: invalid arguments: %v", err)
		}
		seeds := make([]game.ObjectiveSeed, 0, len(args.Objectives))
		for _, o := range args.Objectives {
			seeds = append(seeds, game.ObjectiveSeed{Description: o.Description, TargetCount: o.TargetCount})
		}
		created := gameCtx.InitObjectives(seeds)
		if created == nil {
			log.Printf("[Engine] create_game_objectives ignored, objectives already initialized")
			return "objectives already exist; call get_objectives to inspect them"
		}
		return fmt.Sprintf("created %d objectives", len(created))

	case toolUpdateObjectives:
		var args struct {
			FinishedIDs    []int `json:"finished_ids"`
			PartialUpdates []struct {
				ObjectiveID int    `json:"objective_id"`
				Status      string `json:"status"`
			} `json:"partial_updates"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return fmt.Sprintf("error: invalid arguments: %v", err)
		}
		for _, pu := range args.PartialUpdates {
			if err := gameCtx.SetPartialStatus(pu.ObjectiveID, pu.Status); err != nil {
				log.Printf("[Engine] partial status update rejected: %v", err)
			}
		}
		updated, rejected, notFound := gameCtx.MarkFinished(args.FinishedIDs)
		result := fmt.Sprintf("marked %d objectives finished", updated)
		if len(rejected) > 0 {
			result += fmt.Sprintf("; ids %v are counted objectives and must be advanced with increment_objective_progress", rejected)
		}
		if len(notFound) > 0 {
			result += fmt.Sprintf("; ids %v do not exist", notFound)
		}
		return result

	case toolIncrementProgress:
		var args struct {
			ObjectiveID int `json:"objective_id"`
			Amount      int `json:"amount"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return fmt.Sprintf("error: invalid arguments: %v", err)
		}
		if args.Amount == 0 {
			args.Amount = 1
		}
		obj, err := gameCtx.IncrementProgress(args.ObjectiveID, args.Amount)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return fmt.Sprintf("objective %d progress %d/%d, finished=%t", obj.ID, obj.CurrentCount, obj.TargetCount, obj.Finished)

	case toolGetObjectives:
		data, err := json.Marshal(gameCtx.Snapshot())
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(data)

	default:
		log.Printf("[Engine] unknown tool call: %s", name)
		return fmt.Sprintf("error: unknown tool %q", name)
	}
}
