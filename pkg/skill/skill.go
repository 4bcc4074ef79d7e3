package skill

import (
	"fmt"
	"sort"
)

// Category groups skills into peer groups for score normalization.
type Category string

const (
	CategoryFrontend Category = "Frontend"
	CategoryBackend  Category = "Backend"
	CategoryDevOps   Category = "DevOps"
	CategoryAIML     Category = "AI-ML"
	CategoryMobile   Category = "Mobile"
	CategoryDesign   Category = "Design"
)

// AllCategories returns all known categories.
func AllCategories() []Category {
	return []Category{
		CategoryFrontend,
		CategoryBackend,
		CategoryDevOps,
		CategoryAIML,
		CategoryMobile,
		CategoryDesign,
	}
}

// Definition is the static description of one tracked skill.
// Definitions are loaded once at startup and never mutated.
type Definition struct {
	ID           string   `yaml:"id" json:"id"`
	DisplayName  string   `yaml:"name" json:"name"`
	Category     Category `yaml:"category" json:"category"`
	GitHubQuery  string   `yaml:"github_query" json:"-"`
	YouTubeQuery string   `yaml:"youtube_query" json:"-"`
}

// ErrUnknownSkill reports a skill ID that is not in the catalog. A skill
// with no signal scores 0; an unknown skill is an error, never a 0.
type ErrUnknownSkill struct {
	ID string
}

func (e *ErrUnknownSkill) Error() string {
	return fmt.Sprintf("unknown skill %q", e.ID)
}

// Catalog is the immutable set of tracked skills.
type Catalog struct {
	defs  []Definition
	byID  map[string]Definition
	byCat map[Category][]Definition
}

// NewCatalog builds a catalog from definitions. IDs must be unique.
func NewCatalog(defs []Definition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("catalog requires at least one skill")
	}

	byID := make(map[string]Definition, len(defs))
	byCat := make(map[Category][]Definition)

	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("skill %q has empty id", d.DisplayName)
		}
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate skill id %q", d.ID)
		}
		if d.DisplayName == "" {
			d.DisplayName = d.ID
		}
		if d.GitHubQuery == "" {
			d.GitHubQuery = d.DisplayName
		}
		if d.YouTubeQuery == "" {
			d.YouTubeQuery = d.DisplayName + " tutorial"
		}
		byID[d.ID] = d
		byCat[d.Category] = append(byCat[d.Category], d)
	}

	// Rebuild the slice from the map so defaults applied above stick.
	normalized := make([]Definition, 0, len(defs))
	for _, d := range defs {
		normalized = append(normalized, byID[d.ID])
	}

	return &Catalog{defs: normalized, byID: byID, byCat: byCat}, nil
}

// Lookup returns the definition for id, or ErrUnknownSkill.
func (c *Catalog) Lookup(id string) (Definition, error) {
	d, ok := c.byID[id]
	if !ok {
		return Definition{}, &ErrUnknownSkill{ID: id}
	}
	return d, nil
}

// All returns every tracked skill in catalog order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// IDs returns every tracked skill ID, sorted.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.defs))
	for _, d := range c.defs {
		ids = append(ids, d.ID)
	}
	sort.Strings(ids)
	return ids
}

// Peers returns the definitions sharing the given category.
func (c *Catalog) Peers(cat Category) []Definition {
	peers := c.byCat[cat]
	out := make([]Definition, len(peers))
	copy(out, peers)
	return out
}

// Len returns the number of tracked skills.
func (c *Catalog) Len() int { return len(c.defs) }

// DefaultDefinitions is the built-in tracked skill set, used when the
// config file does not list its own.
func DefaultDefinitions() []Definition {
	return []Definition{
		{ID: "react", DisplayName: "React", Category: CategoryFrontend, GitHubQuery: "react", YouTubeQuery: "react tutorial"},
		{ID: "vuejs", DisplayName: "Vue.js", Category: CategoryFrontend, GitHubQuery: "vuejs", YouTubeQuery: "vue js tutorial"},
		{ID: "angular", DisplayName: "Angular", Category: CategoryFrontend, GitHubQuery: "angular", YouTubeQuery: "angular tutorial"},
		{ID: "svelte", DisplayName: "Svelte", Category: CategoryFrontend, GitHubQuery: "svelte", YouTubeQuery: "svelte tutorial"},
		{ID: "nodejs", DisplayName: "Node.js", Category: CategoryBackend, GitHubQuery: "nodejs", YouTubeQuery: "node js tutorial"},
		{ID: "golang", DisplayName: "Go", Category: CategoryBackend, GitHubQuery: "golang", YouTubeQuery: "golang tutorial"},
		{ID: "rust", DisplayName: "Rust", Category: CategoryBackend, GitHubQuery: "rust language", YouTubeQuery: "rust programming tutorial"},
		{ID: "django", DisplayName: "Django", Category: CategoryBackend, GitHubQuery: "django", YouTubeQuery: "django tutorial"},
		{ID: "docker", DisplayName: "Docker", Category: CategoryDevOps, GitHubQuery: "docker", YouTubeQuery: "docker tutorial"},
		{ID: "kubernetes", DisplayName: "Kubernetes", Category: CategoryDevOps, GitHubQuery: "kubernetes", YouTubeQuery: "kubernetes tutorial"},
		{ID: "terraform", DisplayName: "Terraform", Category: CategoryDevOps, GitHubQuery: "terraform", YouTubeQuery: "terraform tutorial"},
		{ID: "pytorch", DisplayName: "PyTorch", Category: CategoryAIML, GitHubQuery: "pytorch", YouTubeQuery: "pytorch tutorial"},
		{ID: "tensorflow", DisplayName: "TensorFlow", Category: CategoryAIML, GitHubQuery: "tensorflow", YouTubeQuery: "tensorflow tutorial"},
		{ID: "langchain", DisplayName: "LangChain", Category: CategoryAIML, GitHubQuery: "langchain", YouTubeQuery: "langchain tutorial"},
		{ID: "flutter", DisplayName: "Flutter", Category: CategoryMobile, GitHubQuery: "flutter", YouTubeQuery: "flutter tutorial"},
		{ID: "react-native", DisplayName: "React Native", Category: CategoryMobile, GitHubQuery: "react-native", YouTubeQuery: "react native tutorial"},
		{ID: "swift", DisplayName: "Swift", Category: CategoryMobile, GitHubQuery: "swift language", YouTubeQuery: "swift programming tutorial"},
		{ID: "figma", DisplayName: "Figma", Category: CategoryDesign, GitHubQuery: "figma", YouTubeQuery: "figma tutorial"},
	}
}
