package game

// QuestState represents the aggregate completion status of the quest
type QuestState string

const (
	QuestNotStarted QuestState = "not_started"
	QuestInProgress QuestState = "in_progress"
	QuestCompleted  QuestState = "completed"
)

// Character represents a character known to the game
type Character struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InScene     bool   `json:"in_scene"`
}

// Context tracks the full state of one game: quest, objectives, roster,
// turn number and theme. It is owned exclusively by a single session and
// mutated by the storyteller's tool calls while a turn is being generated.
type Context struct {
	QuestState            QuestState  `json:"quest_state"`
	Objectives            []Objective `json:"objectives"`
	ObjectivesInitialized bool        `json:"objectives_initialized"`
	NextObjectiveID       int         `json:"next_objective_id"`
	Characters            []Character `json:"characters"`
	CurrentTurn           int         `json:"current_turn"`
	Theme                 string      `json:"theme,omitempty"`
	Environment           string      `json:"environment,omitempty"`
	Entities              []string    `json:"entities,omitempty"`
}

// NewContext creates an empty game context
func NewContext() *Context {
	return &Context{
		QuestState:      QuestNotStarted,
		NextObjectiveID: 1,
	}
}

// AddCharacter appends a character to the roster
func (c *Context) AddCharacter(name, description string, inScene bool) {
	c.Characters = append(c.Characters, Character{
		Name:        name,
		Description: description,
		InScene:     inScene,
	})
}

// CharactersInScene returns the names of all characters currently in the scene
func (c *Context) CharactersInScene() []string {
	names := make([]string, 0, len(c.Characters))
	for _, ch := range c.Characters {
		if ch.InScene {
			names = append(names, ch.Name)
		}
	}
	return names
}

// UpdateSceneRoster recomputes each character's in-scene flag from the
// roster the storyteller declared for the current scene
func (c *Context) UpdateSceneRoster(names []string) {
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}
	for i := range c.Characters {
		c.Characters[i].InScene = present[c.Characters[i].Name]
		delete(present, c.Characters[i].Name)
	}
	// Names the storyteller introduced this turn join the roster.
	for _, n := range names {
		if present[n] {
			c.AddCharacter(n, "", true)
			delete(present, n)
		}
	}
}
