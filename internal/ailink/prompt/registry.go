package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// Registry provides access to prompt sections.
type Registry interface {
	Get(slug string) (*Section, error)
	List() []*Section
}

// InMemoryRegistry stores sections by slug.
type InMemoryRegistry struct {
	sections map[string]*Section
}

// NewRegistry builds a registry from sections.
func NewRegistry(sections []*Section) (*InMemoryRegistry, error) {
	reg := &InMemoryRegistry{sections: make(map[string]*Section)}
	for _, section := range sections {
		if section == nil {
			continue
		}
		slug := strings.TrimSpace(section.Config.Slug)
		if slug == "" {
			return nil, fmt.Errorf("section missing slug")
		}
		if _, ok := reg.sections[slug]; ok {
			return nil, fmt.Errorf("duplicate section slug: %s", slug)
		}
		reg.sections[slug] = section
	}
	return reg, nil
}

// Get returns the section for the slug.
func (r *InMemoryRegistry) Get(slug string) (*Section, error) {
	if r == nil {
		return nil, fmt.Errorf("section registry not configured")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("section slug is required")
	}
	section, ok := r.sections[slug]
	if !ok {
		return nil, fmt.Errorf("section %q not found", slug)
	}
	return section, nil
}

// List returns sections sorted by order, then slug.
func (r *InMemoryRegistry) List() []*Section {
	if r == nil {
		return nil
	}
	result := make([]*Section, 0, len(r.sections))
	for _, section := range r.sections {
		result = append(result, section)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Config.Order != result[j].Config.Order {
			return result[i].Config.Order < result[j].Config.Order
		}
		return result[i].Config.Slug < result[j].Config.Slug
	})
	return result
}
