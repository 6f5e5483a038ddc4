package prompts

import (
	"fmt"
	"regexp"
	"sync"
)

// Template names used by the session orchestrator.
const (
	TemplateSystem       = "system"
	TemplateThemeSetup   = "theme_setup"
	TemplateContinuation = "continuation"
	TemplateConclusion   = "conclusion"
	TemplateSessionEnded = "session_ended"
	TemplateStyleGuide   = "image_style_guide"
)

// TemplateEngine manages prompt templates. Variables use the
// {{variable_name}} form and unknown placeholders are left intact so a
// missing value is visible in logs rather than silently blanked.
type TemplateEngine struct {
	templates map[string]*Template
	mu        sync.RWMutex
}

// Template is a named prompt body with its placeholder variables.
type Template struct {
	Name        string   `json:"name"`
	Content     string   `json:"content"`
	Variables   []string `json:"variables"`
	Description string   `json:"description"`
}

var varRegex = regexp.MustCompile(`\{\{(\w+)\}\}`)

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerDefaults()
	return e
}

// Register adds or replaces a template, deriving its variable list from
// the content.
func (e *TemplateEngine) Register(tmpl *Template) {
	tmpl.Variables = ParseTemplateVariables(tmpl.Content)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[tmpl.Name] = tmpl
}

// Get retrieves a template by name.
func (e *TemplateEngine) Get(name string) (*Template, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tmpl, ok := e.templates[name]
	if !ok {
		return nil, fmt.Errorf("template not found: %s", name)
	}
	return tmpl, nil
}

// Render substitutes vars into the named template.
func (e *TemplateEngine) Render(name string, vars map[string]string) (string, error) {
	tmpl, err := e.Get(name)
	if err != nil {
		return "", err
	}
	result := varRegex.ReplaceAllStringFunc(tmpl.Content, func(match string) string {
		varName := varRegex.FindStringSubmatch(match)[1]
		if val, ok := vars[varName]; ok {
			return val
		}
		return match
	})
	return result, nil
}

// ParseTemplateVariables extracts the unique placeholder names from a
// template body.
func ParseTemplateVariables(content string) []string {
	matches := varRegex.FindAllStringSubmatch(content, -1)
	seen := make(map[string]bool)
	var vars []string
	for _, m := range matches {
		if len(m) > 1 && !seen[m[1]] {
			seen[m[1]] = true
			vars = append(vars, m[1])
		}
	}
	return vars
}

func (e *TemplateEngine) registerDefaults() {
	defaults := []*Template{
		{
			Name:        TemplateSystem,
			Description: "System prompt for every story turn",
			Content: `You are the narrator of an interactive adventure story. The player's hero is {{hero}}.

Every response must be a single JSON object with these fields:
- "narration": the next story passage, 2-4 paragraphs of vivid second-person prose
- "choices": 2-4 short action options for the player
- "image_prompt": a self-contained visual description of the current scene for an illustrator. Describe setting, characters present, lighting, and composition. Emit this field FIRST in the JSON object.
- "characters_in_scene": the names of the named characters physically present in the scene

Rules:
1. Output ONLY the JSON object. No markdown fences, no commentary.
2. Manage quest objectives exclusively through the provided tools. On the first story turn, call create_game_objectives with 3-5 objectives before writing the narration. Mark objectives finished or advance counted objectives whenever the story accomplishes them.
3. Never finish an objective the story has not earned.
4. Keep continuity with everything that has happened so far.
5. Known characters and their appearances: {{character_notes}}`,
		},
		{
			Name:        TemplateThemeSetup,
			Description: "Directive for the turn that consumes the theme choice",
			Content: `The player has chosen the story world: "{{theme}}".

Open the story in that world. Introduce the hero {{hero}} in a concrete opening scene, establish the stakes, and call create_game_objectives with the quest objectives before narrating. When listing objectives in your tool call, include a counted objective only if the quest naturally involves collecting or repeating something.`,
		},
		{
			Name:        TemplateContinuation,
			Description: "Directive for a normal mid-story turn",
			Content: `The player chose: "{{choice}}"

Previous scene summary: {{previous_summary}}

Open objectives: {{open_objectives}}
{{related_beats}}
Continue the story from the player's choice. Update objective state through tools where the events warrant it.`,
		},
		{
			Name:        TemplateConclusion,
			Description: "Directive for the final turn of a session",
			Content: `The player chose: "{{choice}}"

This is the FINAL turn of the story. Bring the narrative to a complete, satisfying ending that resolves the quest as it stands. Do not introduce new objectives or cliffhangers. Set "choices" to an empty array.`,
		},
		{
			Name:        TemplateSessionEnded,
			Description: "Text shown when input arrives after the story concluded",
			Content:     `The story has ended. Thank you for playing.`,
		},
		{
			Name:        TemplateStyleGuide,
			Description: "Prefix applied to every image generation prompt",
			Content: `Painterly digital illustration, rich color, dramatic lighting, consistent character designs matched to the provided reference images. No text or lettering in the image.`,
		},
	}
	for _, tmpl := range defaults {
		e.Register(tmpl)
	}
}
