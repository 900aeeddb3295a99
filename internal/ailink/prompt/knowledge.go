package prompt

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Knowledge is the static knowledge base rendered into the system prompt.
type Knowledge struct {
	Profile        Profile `yaml:"profile" json:"profile"`
	WorkExperience []Job   `yaml:"work_experience" json:"work_experience"`
	Skills         Skills  `yaml:"skills" json:"skills"`
	Goals          Goals   `yaml:"goals" json:"goals"`
}

// Profile holds personal and contact details.
type Profile struct {
	Name         string `yaml:"name" json:"name"`
	Age          int    `yaml:"age,omitempty" json:"age,omitempty"`
	Role         string `yaml:"role" json:"role"`
	Experience   string `yaml:"experience" json:"experience"`
	Location     string `yaml:"location" json:"location"`
	EnglishLevel string `yaml:"english_level" json:"english_level"`
	WorkMode     string `yaml:"work_mode" json:"work_mode"`
	Relocation   string `yaml:"relocation" json:"relocation"`
	CV           string `yaml:"cv" json:"cv"`
	Summary      string `yaml:"summary" json:"summary"`
}

// Job is one work experience entry.
type Job struct {
	Company          string   `yaml:"company" json:"company"`
	Role             string   `yaml:"role" json:"role"`
	Period           string   `yaml:"period" json:"period"`
	Responsibilities []string `yaml:"responsibilities,omitempty" json:"responsibilities,omitempty"`
	Tech             []string `yaml:"tech,omitempty" json:"tech,omitempty"`
	Achievements     []string `yaml:"achievements,omitempty" json:"achievements,omitempty"`
	DataTypes        []string `yaml:"data_types,omitempty" json:"data_types,omitempty"`
}

// Skills groups skills by category.
type Skills struct {
	Primary   []string `yaml:"primary" json:"primary"`
	Secondary []string `yaml:"secondary" json:"secondary"`
	Cloud     []string `yaml:"cloud" json:"cloud"`
	Soft      []string `yaml:"soft" json:"soft"`
}

// Goals describes target roles and the canned "what are you looking for" answer.
type Goals struct {
	Roles      []string `yaml:"roles" json:"roles"`
	Direction  string   `yaml:"direction" json:"direction"`
	LookingFor string   `yaml:"looking_for,omitempty" json:"looking_for,omitempty"`
}

// ParseKnowledge decodes a knowledge base from YAML.
func ParseKnowledge(data []byte) (*Knowledge, error) {
	var k Knowledge
	if err := yaml.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("parse knowledge base: %w", err)
	}
	if strings.TrimSpace(k.Profile.Name) == "" {
		return nil, fmt.Errorf("knowledge base missing profile.name")
	}
	return &k, nil
}

// Render writes the knowledge base body, without the enclosing tag.
func (k *Knowledge) Render() string {
	if k == nil {
		return ""
	}

	var b strings.Builder

	b.WriteString("<profile>\n")
	field(&b, "Name", k.Profile.Name)
	field(&b, "Role", k.Profile.Role)
	field(&b, "Experience", k.Profile.Experience)
	field(&b, "Location", k.Profile.Location)
	field(&b, "English", k.Profile.EnglishLevel)
	field(&b, "Work Mode", k.Profile.WorkMode)
	field(&b, "Relocation", k.Profile.Relocation)
	field(&b, "CV", k.Profile.CV)
	field(&b, "Summary", k.Profile.Summary)
	b.WriteString("</profile>\n\n")

	b.WriteString("<work_experience>\n")
	for _, job := range k.WorkExperience {
		b.WriteString("<job>\n")
		field(&b, "Company", job.Company)
		field(&b, "Role", job.Role)
		field(&b, "Period", job.Period)
		field(&b, "Responsibilities", strings.Join(job.Responsibilities, "; "))
		field(&b, "Tech Stack", strings.Join(job.Tech, ", "))
		field(&b, "Achievements", strings.Join(job.Achievements, "; "))
		field(&b, "Data Types", strings.Join(job.DataTypes, ", "))
		b.WriteString("</job>\n")
	}
	b.WriteString("</work_experience>\n\n")

	b.WriteString("<skills>\n")
	field(&b, "Primary", strings.Join(k.Skills.Primary, ", "))
	field(&b, "Secondary", strings.Join(k.Skills.Secondary, ", "))
	field(&b, "Cloud (Goal)", strings.Join(k.Skills.Cloud, ", "))
	field(&b, "Soft", strings.Join(k.Skills.Soft, ", "))
	b.WriteString("</skills>\n\n")

	b.WriteString("<goals>\n")
	field(&b, "Target Roles", strings.Join(k.Goals.Roles, ", "))
	field(&b, "Direction", k.Goals.Direction)
	if k.Goals.LookingFor != "" {
		field(&b, `Response for "What are you looking for?"`, `"`+k.Goals.LookingFor+`"`)
	}
	b.WriteString("</goals>")

	return b.String()
}

// field skips empty values so optional job attributes leave no dangling labels.
func field(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
}
