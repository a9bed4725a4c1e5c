// Package catalog holds the static crop knowledge used by AgriLens.
//
// The catalog merges two data sources:
//
//  1. **Built-in defaults**: crop categories with their condition labels,
//     curated treatment plans keyed by detected-class label, and the
//     knowledge base shown in the Knowledge Center.
//
//  2. **Overrides file**: an optional JSON file (AGRILENS_CATALOG_FILE)
//     adding or replacing treatments and knowledge entries without a rebuild.
//
// The catalog is loaded once at startup and is read-only afterwards, except
// for Register which tests and operators use to add treatments.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/agrilens/agrilens/control-plane/pkg/models"
	"github.com/rs/zerolog/log"
)

// Catalog is a thread-safe lookup over categories, treatments and knowledge.
type Catalog struct {
	mu         sync.RWMutex
	categories []models.CropCategory
	treatments map[string]models.TreatmentInfo // key: exact detected-class label
	knowledge  []models.KnowledgeItem
}

// NewCatalog creates a catalog with the built-in data. If overridesPath is
// set, entries from that file are layered on top; a missing or malformed file
// is logged and ignored.
func NewCatalog(overridesPath string) *Catalog {
	c := &Catalog{
		treatments: make(map[string]models.TreatmentInfo),
	}
	c.loadBuiltinDefaults()

	if overridesPath != "" {
		if err := c.loadOverrides(overridesPath); err != nil {
			log.Warn().Err(err).Str("path", overridesPath).Msg("Catalog: overrides not loaded")
		}
	}
	return c
}

// Categories returns the crop categories with resolved icons.
func (c *Catalog) Categories() []models.CropCategory {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.CropCategory, len(c.categories))
	copy(out, c.categories)
	return out
}

// Treatment returns the curated treatment for an exact label.
func (c *Catalog) Treatment(label string) (models.TreatmentInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.treatments[label]
	if !ok {
		return models.TreatmentInfo{}, false
	}
	return cloneTreatment(t), true
}

// Register adds or replaces the treatment for label.
func (c *Catalog) Register(label string, t models.TreatmentInfo) {
	c.mu.Lock()
	c.treatments[label] = cloneTreatment(t)
	c.mu.Unlock()
}

// KnowledgeQuery filters the knowledge base. Empty fields match everything;
// "all" is accepted for Category and Type.
type KnowledgeQuery struct {
	Search   string
	Category string
	Type     string
}

// SearchKnowledge returns the items whose name or category contains Search
// (case-insensitive) and which match the category and type filters.
func (c *Catalog) SearchKnowledge(q KnowledgeQuery) []models.KnowledgeItem {
	c.mu.RLock()
	defer c.mu.RUnlock()

	term := strings.ToLower(q.Search)
	out := make([]models.KnowledgeItem, 0, len(c.knowledge))
	for _, item := range c.knowledge {
		if term != "" &&
			!strings.Contains(strings.ToLower(item.Name), term) &&
			!strings.Contains(strings.ToLower(item.Category), term) {
			continue
		}
		if q.Category != "" && q.Category != "all" && !strings.EqualFold(item.Category, q.Category) {
			continue
		}
		if q.Type != "" && q.Type != "all" && !strings.EqualFold(string(item.Type), q.Type) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// ── Icons ───────────────────────────────────────────────────

// FallbackIcon is used for icon names outside the known set.
const FallbackIcon = "Leaf"

var glyphs = map[string]string{
	"Apple":  "🍎",
	"Wheat":  "🌾",
	"Grape":  "🍇",
	"Cherry": "🍒",
	"Bug":    "🐛",
	"Leaf":   "🍃",
}

// ResolveIcon maps an icon name to its descriptor. Unknown names resolve to
// the leaf icon; the color is kept either way.
func ResolveIcon(name, color string) models.Icon {
	glyph, ok := glyphs[name]
	if !ok {
		name, glyph = FallbackIcon, glyphs[FallbackIcon]
	}
	return models.Icon{Name: name, Glyph: glyph, Color: color}
}

// ── Overrides ───────────────────────────────────────────────

type overridesFile struct {
	Treatments map[string]models.TreatmentInfo `json:"treatments"`
	Knowledge  []models.KnowledgeItem          `json:"knowledge"`
}

func (c *Catalog) loadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var f overridesFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("unmarshal overrides: %w", err)
	}

	c.mu.Lock()
	for label, t := range f.Treatments {
		c.treatments[label] = t
	}
	for _, item := range f.Knowledge {
		replaced := false
		for i := range c.knowledge {
			if c.knowledge[i].ID == item.ID {
				c.knowledge[i] = item
				replaced = true
				break
			}
		}
		if !replaced {
			c.knowledge = append(c.knowledge, item)
		}
	}
	c.mu.Unlock()

	log.Debug().
		Int("treatments", len(f.Treatments)).
		Int("knowledge", len(f.Knowledge)).
		Msg("Catalog: loaded overrides")
	return nil
}

func cloneTreatment(t models.TreatmentInfo) models.TreatmentInfo {
	t.Steps = append([]string(nil), t.Steps...)
	t.Prevention = append([]string(nil), t.Prevention...)
	return t
}
