package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agrilens/agrilens/control-plane/internal/catalog"
	"github.com/agrilens/agrilens/control-plane/pkg/models"
)

func TestCategories(t *testing.T) {
	c := catalog.NewCatalog("")
	cats := c.Categories()
	if len(cats) != 8 {
		t.Fatalf("Categories() len = %d, want 8", len(cats))
	}
	if cats[0].ID != "apple" || cats[0].Icon.Name != "Apple" {
		t.Errorf("first category = %+v", cats[0])
	}
	for _, cat := range cats {
		if cat.ID == "potato" && cat.Icon.Name != catalog.FallbackIcon {
			t.Errorf("potato icon = %s, want fallback %s", cat.Icon.Name, catalog.FallbackIcon)
		}
		if cat.Icon.Color == "" {
			t.Errorf("category %s has no color", cat.ID)
		}
	}
}

func TestResolveIcon(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Apple", "Apple"},
		{"Bug", "Bug"},
		{"Orange", "Leaf"},
		{"", "Leaf"},
	}
	for _, tt := range tests {
		got := catalog.ResolveIcon(tt.name, "from-x to-y")
		if got.Name != tt.want {
			t.Errorf("ResolveIcon(%q).Name = %q, want %q", tt.name, got.Name, tt.want)
		}
		if got.Glyph == "" {
			t.Errorf("ResolveIcon(%q) has no glyph", tt.name)
		}
		if got.Color != "from-x to-y" {
			t.Errorf("ResolveIcon(%q).Color = %q", tt.name, got.Color)
		}
	}
}

func TestTreatment(t *testing.T) {
	c := catalog.NewCatalog("")

	tr, ok := c.Treatment("Tomato___Late_blight")
	if !ok {
		t.Fatal("Treatment(Tomato___Late_blight) not found")
	}
	if tr.Title != "Late Blight Management" {
		t.Errorf("Title = %q", tr.Title)
	}

	// Returned copies must not alias the catalog.
	tr.Steps[0] = "mutated"
	again, _ := c.Treatment("Tomato___Late_blight")
	if again.Steps[0] == "mutated" {
		t.Error("Treatment() returned an aliased slice")
	}

	if _, ok := c.Treatment("tomato___late_blight"); ok {
		t.Error("Treatment() lookup must be exact")
	}
}

func TestSearchKnowledge(t *testing.T) {
	c := catalog.NewCatalog("")

	tests := []struct {
		name string
		q    catalog.KnowledgeQuery
		want []string
	}{
		{"all", catalog.KnowledgeQuery{}, []string{"apple-scab", "tomato-healthy", "strawberry-leaf-scorch", "potato-healthy"}},
		{"search name", catalog.KnowledgeQuery{Search: "SCAB"}, []string{"apple-scab"}},
		{"search category", catalog.KnowledgeQuery{Search: "straw"}, []string{"strawberry-leaf-scorch"}},
		{"category filter", catalog.KnowledgeQuery{Category: "potato"}, []string{"potato-healthy"}},
		{"type filter", catalog.KnowledgeQuery{Type: "Healthy"}, []string{"tomato-healthy", "potato-healthy"}},
		{"all filters", catalog.KnowledgeQuery{Category: "all", Type: "all"}, []string{"apple-scab", "tomato-healthy", "strawberry-leaf-scorch", "potato-healthy"}},
		{"no match", catalog.KnowledgeQuery{Search: "blight", Type: "Pest"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.SearchKnowledge(tt.q)
			if len(got) != len(tt.want) {
				t.Fatalf("SearchKnowledge() len = %d, want %d", len(got), len(tt.want))
			}
			for i, item := range got {
				if item.ID != tt.want[i] {
					t.Errorf("item[%d] = %s, want %s", i, item.ID, tt.want[i])
				}
			}
		})
	}
}

func TestOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	data := `{
		"treatments": {"Grape___Black_rot": {"title": "Black Rot Control", "description": "d", "steps": ["a"], "prevention": ["b"]}},
		"knowledge": [{"id": "apple-scab", "name": "Apple Scab (revised)", "category": "Apple", "type": "Disease"}]
	}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	c := catalog.NewCatalog(path)
	if tr, ok := c.Treatment("Grape___Black_rot"); !ok || tr.Title != "Black Rot Control" {
		t.Errorf("override treatment = %+v, %v", tr, ok)
	}
	got := c.SearchKnowledge(catalog.KnowledgeQuery{Search: "revised"})
	if len(got) != 1 || got[0].ID != "apple-scab" {
		t.Errorf("override knowledge = %+v", got)
	}
	if n := len(c.SearchKnowledge(catalog.KnowledgeQuery{})); n != 4 {
		t.Errorf("knowledge count = %d, want 4 (replaced, not appended)", n)
	}
}

func TestOverrides_MissingFileIgnored(t *testing.T) {
	c := catalog.NewCatalog(filepath.Join(t.TempDir(), "nope.json"))
	if _, ok := c.Treatment("Apple___Apple_scab"); !ok {
		t.Error("built-ins should load even when overrides are missing")
	}
}

func TestRegister(t *testing.T) {
	c := catalog.NewCatalog("")
	c.Register("Corn_(maize)___Common_rust", models.TreatmentInfo{Title: "Rust"})
	if tr, ok := c.Treatment("Corn_(maize)___Common_rust"); !ok || tr.Title != "Rust" {
		t.Errorf("Treatment() after Register = %+v, %v", tr, ok)
	}
}
