package main

import (
	"embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed guides/metrics.yaml
var embeddedFiles embed.FS

// MetricGuide explains one reported metric.
type MetricGuide struct {
	Slug        string `yaml:"-" json:"slug"`
	Title       string `yaml:"title" json:"title"`
	Calculation string `yaml:"calculation" json:"calculation"`
	Importance  string `yaml:"importance" json:"importance"`
}

type Guides map[string]MetricGuide

func loadGuides() (Guides, error) {
	data, err := embeddedFiles.ReadFile("guides/metrics.yaml")
	if err != nil {
		return nil, err
	}

	var doc struct {
		Angles map[string]MetricGuide `yaml:"angles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse metric guides: %w", err)
	}

	guides := make(Guides, len(doc.Angles))
	for slug, g := range doc.Angles {
		g.Slug = slug
		guides[slug] = g
	}
	return guides, nil
}

// List returns the guides ordered by slug.
func (g Guides) List() []MetricGuide {
	list := make([]MetricGuide, 0, len(g))
	for _, guide := range g {
		list = append(list, guide)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Slug < list[j].Slug
	})
	return list
}
