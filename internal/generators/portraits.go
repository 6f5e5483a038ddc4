package generators

import (
	"fmt"
	"log"
	"sort"

	"fableweaver/server/internal/config"
	"fableweaver/server/internal/interfaces"
)

// PortraitLibrary holds the character reference portraits loaded at
// startup. Lookups are by character name as the model emits it.
type PortraitLibrary struct {
	portraits    map[string]interfaces.ImageInput
	descriptions map[string]string
}

// LoadPortraits reads every configured portrait from disk, normalizing
// to PNG. A portrait that fails to load is skipped with a warning so a
// single bad asset does not keep the server from starting.
func LoadPortraits(cfgs map[string]config.PortraitConfig) *PortraitLibrary {
	lib := &PortraitLibrary{
		portraits:    make(map[string]interfaces.ImageInput),
		descriptions: make(map[string]string),
	}
	for name, pc := range cfgs {
		data, err := LoadReferenceImage(pc.Path)
		if err != nil {
			log.Printf("[Portraits] skipping %s: %v", name, err)
			continue
		}
		normalized, err := NormalizePNG(data)
		if err != nil {
			log.Printf("[Portraits] skipping %s: %v", name, err)
			continue
		}
		lib.portraits[name] = interfaces.ImageInput{
			Name: fmt.Sprintf("portrait_%s", name),
			Data: normalized,
			MIME: "image/png",
		}
		lib.descriptions[name] = pc.Description
	}
	log.Printf("[Portraits] loaded %d character portraits", len(lib.portraits))
	return lib
}

// ForCharacters returns the portraits for the named characters, in
// stable order. Names without a portrait are silently skipped.
func (l *PortraitLibrary) ForCharacters(names []string) []interfaces.ImageInput {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	var out []interfaces.ImageInput
	for _, name := range sorted {
		if img, ok := l.portraits[name]; ok {
			out = append(out, img)
		}
	}
	return out
}

// DescriptionsFor returns "Name: description" lines for the named
// characters that have one, in stable order.
func (l *PortraitLibrary) DescriptionsFor(names []string) []string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	var out []string
	for _, name := range sorted {
		if desc, ok := l.descriptions[name]; ok && desc != "" {
			out = append(out, fmt.Sprintf("%s: %s", name, desc))
		}
	}
	return out
}

// Description returns the configured visual description for a
// character, if any.
func (l *PortraitLibrary) Description(name string) (string, bool) {
	desc, ok := l.descriptions[name]
	return desc, ok
}

// Names returns all characters that have a portrait.
func (l *PortraitLibrary) Names() []string {
	names := make([]string, 0, len(l.portraits))
	for name := range l.portraits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
