package game

import (
	"fmt"
	"log"
)

// Objective is a quest sub-goal. An objective with TargetCount > 0 is a
// counted objective that finishes when CurrentCount reaches the target;
// otherwise it is a simple objective finished only by an explicit status
// update.
type Objective struct {
	ID            int    `json:"id"`
	Description   string `json:"objective"`
	Finished      bool   `json:"finished"`
	TargetCount   int    `json:"target_count,omitempty"`
	CurrentCount  int    `json:"current_count,omitempty"`
	PartialStatus string `json:"partially_complete,omitempty"`
}

// Counted reports whether this is a multi-step objective
func (o Objective) Counted() bool { return o.TargetCount > 0 }

// ObjectiveSeed describes an objective to be created before the system has
// assigned it an ID.
type ObjectiveSeed struct {
	Description string `json:"objective"`
	Finished    bool   `json:"finished"`
	TargetCount int    `json:"target_count,omitempty"`
}

// ObjectiveView is the read-only projection of an objective used for
// transport serialization.
type ObjectiveView struct {
	ID                int    `json:"id"`
	Objective         string `json:"objective"`
	Finished          bool   `json:"finished"`
	TargetCount       *int   `json:"target_count,omitempty"`
	CurrentCount      *int   `json:"current_count,omitempty"`
	PartiallyComplete string `json:"partially_complete,omitempty"`
}

// ComputeQuestState derives the quest state from the full objective list.
// Completed holds iff the list is non-empty and every objective is finished.
func ComputeQuestState(objectives []Objective) QuestState {
	if len(objectives) == 0 {
		return QuestNotStarted
	}
	for _, o := range objectives {
		if !o.Finished {
			return QuestInProgress
		}
	}
	return QuestCompleted
}

// recomputeQuestState applies ComputeQuestState and logs the defensive
// completed -> in_progress reopen, which indicates the storyteller added
// unfinished objectives to an already-completed set.
func (c *Context) recomputeQuestState() {
	next := ComputeQuestState(c.Objectives)
	if c.QuestState == QuestCompleted && next == QuestInProgress {
		log.Printf("[GameContext] quest reopened: unfinished objectives added to a completed set")
	}
	c.QuestState = next
}

// InitObjectives performs the one-time initialization of the objective set,
// assigning sequential IDs starting at 1. It is a no-op if objectives have
// already been initialized.
func (c *Context) InitObjectives(seeds []ObjectiveSeed) []Objective {
	if c.ObjectivesInitialized {
		return nil
	}
	if len(seeds) == 0 {
		return nil
	}
	created := make([]Objective, 0, len(seeds))
	for _, s := range seeds {
		obj := Objective{
			ID:          c.NextObjectiveID,
			Description: s.Description,
			Finished:    s.Finished,
			TargetCount: s.TargetCount,
		}
		c.NextObjectiveID++
		created = append(created, obj)
	}
	c.Objectives = created
	c.ObjectivesInitialized = true
	c.recomputeQuestState()
	return created
}

// SetObjectives replaces the entire objective list and recomputes the quest
// state.
func (c *Context) SetObjectives(objectives []Objective) {
	c.Objectives = objectives
	for _, o := range objectives {
		if o.ID >= c.NextObjectiveID {
			c.NextObjectiveID = o.ID + 1
		}
	}
	if len(objectives) > 0 {
		c.ObjectivesInitialized = true
	}
	c.recomputeQuestState()
}

// MarkFinished marks simple objectives as finished by ID. Counted objectives
// cannot be finished through this path and are reported back as rejected.
func (c *Context) MarkFinished(ids []int) (updated int, rejected, notFound []int) {
	if !c.ObjectivesInitialized {
		return 0, nil, ids
	}
	for _, id := range ids {
		idx := c.indexOf(id)
		if idx < 0 {
			notFound = append(notFound, id)
			continue
		}
		obj := &c.Objectives[idx]
		if obj.Counted() {
			rejected = append(rejected, id)
			continue
		}
		if !obj.Finished {
			obj.Finished = true
			updated++
		}
	}
	c.recomputeQuestState()
	return updated, rejected, notFound
}

// IncrementProgress advances a counted objective by amount, clamping at the
// target and auto-finishing when the target is reached. Incrementing an
// already-finished objective leaves it unchanged.
func (c *Context) IncrementProgress(id, amount int) (Objective, error) {
	if !c.ObjectivesInitialized {
		return Objective{}, fmt.Errorf("objectives have not been initialized")
	}
	if amount <= 0 {
		return Objective{}, fmt.Errorf("increment amount must be positive, got %d", amount)
	}
	idx := c.indexOf(id)
	if idx < 0 {
		return Objective{}, fmt.Errorf("objective %d not found", id)
	}
	obj := &c.Objectives[idx]
	if !obj.Counted() {
		return Objective{}, fmt.Errorf("objective %d is not a counted objective", id)
	}
	if obj.Finished {
		return *obj, nil
	}
	obj.CurrentCount += amount
	if obj.CurrentCount >= obj.TargetCount {
		obj.CurrentCount = obj.TargetCount
		obj.Finished = true
	}
	c.recomputeQuestState()
	return *obj, nil
}

// SetPartialStatus attaches free-text partial progress to an objective
func (c *Context) SetPartialStatus(id int, status string) error {
	idx := c.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("objective %d not found", id)
	}
	c.Objectives[idx].PartialStatus = status
	return nil
}

// Snapshot returns a read-only projection of the objective list for
// serialization to the client.
func (c *Context) Snapshot() []ObjectiveView {
	views := make([]ObjectiveView, 0, len(c.Objectives))
	for _, o := range c.Objectives {
		v := ObjectiveView{
			ID:                o.ID,
			Objective:         o.Description,
			Finished:          o.Finished,
			PartiallyComplete: o.PartialStatus,
		}
		if o.Counted() {
			target := o.TargetCount
			current := o.CurrentCount
			v.TargetCount = &target
			v.CurrentCount = &current
		}
		views = append(views, v)
	}
	return views
}

// PendingObjectives returns the unfinished objectives in list order
func (c *Context) PendingObjectives() []Objective {
	pending := make([]Objective, 0, len(c.Objectives))
	for _, o := range c.Objectives {
		if !o.Finished {
			pending = append(pending, o)
		}
	}
	return pending
}

func (c *Context) indexOf(id int) int {
	for i := range c.Objectives {
		if c.Objectives[i].ID == id {
			return i
		}
	}
	return -1
}
