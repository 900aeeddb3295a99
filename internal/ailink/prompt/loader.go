package prompt

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var tagPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Load parses and validates a prompt section from markdown with YAML frontmatter.
func Load(source string, data []byte) (*Section, error) {
	config, body, err := parseYAMLWithFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("parse section %s: %w", source, err)
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("section %s has an empty body", source)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("validate section %s: %w", source, err)
	}

	return &Section{Config: config, Body: body, Source: source}, nil
}

// LoadFromDir reads all section files (.md with YAML frontmatter) from a directory.
func LoadFromDir(dir string) ([]*Section, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("scan sections: %w", err)
	}
	results := make([]*Section, 0, len(entries))
	for _, path := range entries {
		data, err := os.ReadFile(path) // #nosec G304 -- Section path is user-provided
		if err != nil {
			return nil, fmt.Errorf("read section %s: %w", path, err)
		}
		section, err := Load(path, data)
		if err != nil {
			return nil, err
		}
		results = append(results, section)
	}
	return results, nil
}

func parseYAMLWithFrontmatter(data []byte) (Config, string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Config{}, "", fmt.Errorf("empty section")
	}

	lines := bufio.NewScanner(bytes.NewReader(trimmed))
	lines.Split(bufio.ScanLines)

	var (
		frontmatter []string
		body        []string
		inFront     bool
		headerSeen  bool
	)

	for lines.Scan() {
		line := lines.Text()
		switch {
		case !headerSeen && strings.TrimSpace(line) == "---":
			headerSeen = true
			inFront = true
		case headerSeen && inFront && strings.TrimSpace(line) == "---":
			inFront = false
		default:
			if inFront {
				frontmatter = append(frontmatter, line)
			} else {
				body = append(body, line)
			}
		}
	}
	if err := lines.Err(); err != nil {
		return Config{}, "", err
	}

	if !headerSeen {
		return Config{}, "", fmt.Errorf("missing frontmatter")
	}
	if inFront {
		return Config{}, "", fmt.Errorf("unterminated frontmatter")
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(strings.Join(frontmatter, "\n")), &cfg); err != nil {
		return Config{}, "", fmt.Errorf("invalid frontmatter: %w", err)
	}

	return cfg, strings.Join(body, "\n"), nil
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Slug) == "" {
		return fmt.Errorf("slug is required")
	}
	tag := cfg.Tag
	if tag == "" {
		tag = cfg.Slug
	}
	if !tagPattern.MatchString(tag) {
		return fmt.Errorf("tag %q must be lowercase letters, digits or underscores", tag)
	}
	if tag == knowledgeTag || tag == conversationTag {
		return fmt.Errorf("tag %q is reserved", tag)
	}
	return nil
}
