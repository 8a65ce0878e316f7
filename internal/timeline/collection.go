package timeline

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed defaults/collection.json
var defaultCollectionJSON []byte

// Collection is the full vocabulary a library is built from: tags, labels,
// their groupings and the shared time events.
type Collection struct {
	Name        string       `json:"name"`
	Tags        []Tag        `json:"tags"`
	Labels      []Label      `json:"labels"`
	TagGroups   []TagGroup   `json:"tagGroups"`
	LabelGroups []LabelGroup `json:"labelGroups"`
	TimeEvents  []TimeEvent  `json:"timeEvents"`
}

// DefaultCollection returns the collection bundled with the agent.
func DefaultCollection() (Collection, error) {
	var c Collection
	if err := json.Unmarshal(defaultCollectionJSON, &c); err != nil {
		return Collection{}, fmt.Errorf("parse bundled collection: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Collection{}, fmt.Errorf("bundled collection invalid: %w", err)
	}
	return c, nil
}

// LoadCollection reads and validates a user-supplied collection file.
func LoadCollection(path string) (Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Collection{}, fmt.Errorf("read collection: %w", err)
	}
	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return Collection{}, fmt.Errorf("parse collection %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Collection{}, fmt.Errorf("collection %s invalid: %w", path, err)
	}
	return c, nil
}

// Validate enforces the hotkey invariants: no two tags in the collection share
// a non-empty hotkey, and no two labels under the same tag share a non-empty
// hotkey.
func (c Collection) Validate() error {
	seen := make(map[string]string, len(c.Tags))
	for _, t := range c.Tags {
		if t.Hotkey == "" {
			continue
		}
		if other, ok := seen[t.Hotkey]; ok {
			return fmt.Errorf("hotkey %q assigned to both tag %q and tag %q", t.Hotkey, other, t.Name)
		}
		seen[t.Hotkey] = t.Name
	}
	for _, t := range c.Tags {
		byKey := make(map[string]string, len(t.LabelHotkeys))
		for labelID, key := range t.LabelHotkeys {
			if key == "" {
				continue
			}
			if other, ok := byKey[key]; ok {
				return fmt.Errorf("tag %q: label hotkey %q assigned to both %q and %q", t.Name, key, other, labelID)
			}
			byKey[key] = labelID
		}
	}
	return nil
}
