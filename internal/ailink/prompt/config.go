package prompt

// Config describes a prompt section loaded from YAML frontmatter.
type Config struct {
	Slug        string `yaml:"slug" json:"slug"`
	Tag         string `yaml:"tag,omitempty" json:"tag,omitempty"`
	Order       int    `yaml:"order" json:"order"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
	Updated     string `yaml:"updated,omitempty" json:"updated,omitempty"`
}

// Section wraps a validated section configuration with its body and source.
type Section struct {
	Config Config
	Body   string
	Source string
}

// TagName returns the wrapping tag, defaulting to the slug.
func (s *Section) TagName() string {
	if s == nil {
		return ""
	}
	if s.Config.Tag != "" {
		return s.Config.Tag
	}
	return s.Config.Slug
}
