// Package catalog holds the seed data shipped with the binary: the BABOK
// knowledge areas, the artifact catalog and the roadmap frameworks.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embedded []byte

type KnowledgeArea struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name"`
}

type Artifact struct {
	Code          string `yaml:"code"`
	Name          string `yaml:"name"`
	KnowledgeArea string `yaml:"knowledge_area"`
	Description   string `yaml:"description"`
	Template      string `yaml:"template"`
}

type Task struct {
	Title         string   `yaml:"title"`
	Description   string   `yaml:"description"`
	ArtifactCodes []string `yaml:"artifact_codes"`
}

type Phase struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Tasks       []Task `yaml:"tasks"`
}

type Framework struct {
	Slug        string  `yaml:"slug"`
	Name        string  `yaml:"name"`
	Version     string  `yaml:"version"`
	Description string  `yaml:"description"`
	Phases      []Phase `yaml:"phases"`
}

type Catalog struct {
	KnowledgeAreas []KnowledgeArea `yaml:"knowledge_areas"`
	Artifacts      []Artifact      `yaml:"artifacts"`
	Frameworks     []Framework     `yaml:"frameworks"`
}

// Default parses the embedded catalog. The embedded file is validated by
// tests, so a failure here is a build defect.
func Default() *Catalog {
	c, err := Parse(embedded)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded catalog.yaml: %v", err))
	}
	return c
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks codes and slugs are unique and every reference resolves.
func (c *Catalog) Validate() error {
	areas := make(map[string]bool, len(c.KnowledgeAreas))
	for _, ka := range c.KnowledgeAreas {
		if ka.Code == "" || ka.Name == "" {
			return fmt.Errorf("knowledge area %q: code and name are required", ka.Code)
		}
		if areas[ka.Code] {
			return fmt.Errorf("duplicate knowledge area %q", ka.Code)
		}
		areas[ka.Code] = true
	}

	codes := make(map[string]bool, len(c.Artifacts))
	for _, a := range c.Artifacts {
		if a.Code == "" || a.Name == "" {
			return fmt.Errorf("artifact %q: code and name are required", a.Code)
		}
		if codes[a.Code] {
			return fmt.Errorf("duplicate artifact code %q", a.Code)
		}
		if !areas[a.KnowledgeArea] {
			return fmt.Errorf("artifact %q: unknown knowledge area %q", a.Code, a.KnowledgeArea)
		}
		codes[a.Code] = true
	}

	slugs := make(map[string]bool, len(c.Frameworks))
	for _, f := range c.Frameworks {
		if f.Slug == "" || f.Name == "" {
			return fmt.Errorf("framework %q: slug and name are required", f.Slug)
		}
		if slugs[f.Slug] {
			return fmt.Errorf("duplicate framework slug %q", f.Slug)
		}
		slugs[f.Slug] = true
		if len(f.Phases) == 0 {
			return fmt.Errorf("framework %q has no phases", f.Slug)
		}
		for _, p := range f.Phases {
			if strings.TrimSpace(p.Name) == "" {
				return fmt.Errorf("framework %q: unnamed phase", f.Slug)
			}
			for _, t := range p.Tasks {
				if strings.TrimSpace(t.Title) == "" {
					return fmt.Errorf("framework %q phase %q: untitled task", f.Slug, p.Name)
				}
				for _, code := range t.ArtifactCodes {
					if !codes[code] {
						return fmt.Errorf("framework %q task %q: unknown artifact %q", f.Slug, t.Title, code)
					}
				}
			}
		}
	}
	return nil
}

// KnowledgeAreaName returns the display name for a knowledge-area code.
func (c *Catalog) KnowledgeAreaName(code string) (string, bool) {
	for _, ka := range c.KnowledgeAreas {
		if ka.Code == code {
			return ka.Name, true
		}
	}
	return "", false
}

func (c *Catalog) ArtifactCodes() []string {
	codes := make([]string, 0, len(c.Artifacts))
	for _, a := range c.Artifacts {
		codes = append(codes, a.Code)
	}
	return codes
}
