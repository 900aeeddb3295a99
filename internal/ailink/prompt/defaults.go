package prompt

import (
	"embed"
	"fmt"
)

//go:embed sections/*.md
var defaultSectionsFS embed.FS

//go:embed knowledge.yaml
var defaultKnowledge []byte

// LoadDefaults loads the embedded section set.
func LoadDefaults() ([]*Section, error) {
	entries, err := defaultSectionsFS.ReadDir("sections")
	if err != nil {
		return nil, fmt.Errorf("read embedded sections: %w", err)
	}
	results := make([]*Section, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := defaultSectionsFS.ReadFile("sections/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read embedded section %s: %w", entry.Name(), err)
		}
		section, err := Load(entry.Name(), data)
		if err != nil {
			return nil, err
		}
		results = append(results, section)
	}
	return results, nil
}

// DefaultRegistry builds a registry from embedded sections.
func DefaultRegistry() (Registry, error) {
	sections, err := LoadDefaults()
	if err != nil {
		return nil, err
	}
	return NewRegistry(sections)
}

// DefaultKnowledge decodes the embedded knowledge base.
func DefaultKnowledge() (*Knowledge, error) {
	return ParseKnowledge(defaultKnowledge)
}

// DefaultAssembler wires the embedded sections and knowledge base.
func DefaultAssembler() (*Assembler, error) {
	reg, err := DefaultRegistry()
	if err != nil {
		return nil, err
	}
	knowledge, err := DefaultKnowledge()
	if err != nil {
		return nil, err
	}
	return NewAssembler(reg, knowledge), nil
}
