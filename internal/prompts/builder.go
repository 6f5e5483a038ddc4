package prompts

import (
	"fmt"
	"log"
	"strings"

	"fableweaver/server/internal/game"
)

// Builder renders the concrete prompts the session orchestrator needs
// from the template engine.
type Builder struct {
	engine *TemplateEngine
	hero   string
}

func NewBuilder(engine *TemplateEngine, hero string) *Builder {
	return &Builder{engine: engine, hero: hero}
}

// SystemPrompt renders the per-session system prompt with the known
// character appearance notes.
func (b *Builder) SystemPrompt(characterNotes map[string]string) string {
	var notes []string
	for name, desc := range characterNotes {
		notes = append(notes, fmt.Sprintf("%s: %s", name, desc))
	}
	note := "none yet"
	if len(notes) > 0 {
		note = strings.Join(notes, "; ")
	}
	return b.render(TemplateSystem, map[string]string{
		"hero":            b.hero,
		"character_notes": note,
	})
}

// ThemeSetup renders the directive for the theme-consuming turn.
func (b *Builder) ThemeSetup(theme string) string {
	return b.render(TemplateThemeSetup, map[string]string{
		"theme": theme,
		"hero":  b.hero,
	})
}

// Continuation renders the directive for a normal story turn.
func (b *Builder) Continuation(choice, previousSummary string, open []game.Objective, relatedBeats []string) string {
	objLines := make([]string, 0, len(open))
	for _, o := range open {
		line := fmt.Sprintf("#%d %s", o.ID, o.Description)
		if o.Counted() {
			line += fmt.Sprintf(" (%d/%d)", o.CurrentCount, o.TargetCount)
		}
		objLines = append(objLines, line)
	}
	objText := "none"
	if len(objLines) > 0 {
		objText = strings.Join(objLines, "; ")
	}

	beats := ""
	if len(relatedBeats) > 0 {
		beats = "Earlier story moments that may be relevant:\n- " + strings.Join(relatedBeats, "\n- ") + "\n"
	}

	return b.render(TemplateContinuation, map[string]string{
		"choice":           choice,
		"previous_summary": previousSummary,
		"open_objectives":  objText,
		"related_beats":    beats,
	})
}

// Conclusion renders the directive for the final turn.
func (b *Builder) Conclusion(choice string) string {
	return b.render(TemplateConclusion, map[string]string{"choice": choice})
}

// SessionEnded returns the post-conclusion notice text.
func (b *Builder) SessionEnded() string {
	return b.render(TemplateSessionEnded, nil)
}

// StyleGuide returns the image prompt prefix.
func (b *Builder) StyleGuide() string {
	return b.render(TemplateStyleGuide, nil)
}

func (b *Builder) render(name string, vars map[string]string) string {
	out, err := b.engine.Render(name, vars)
	if err != nil {
		log.Printf("[Prompts] render %s failed: %v", name, err)
		return ""
	}
	return out
}
