package entity

import (
	"errors"
	"time"

	"github.com/archos-hq/archos/pkg/resource"
)

// TableSkills holds the assistant's toggleable capabilities.
const TableSkills = "bot_skills"

// Skill is one assistant capability with its per-skill configuration.
type Skill struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Description *string        `db:"description" json:"description"`
	Enabled     bool           `db:"enabled" json:"enabled"`
	Config      map[string]any `db:"config" json:"config"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

func (s Skill) EntityID() string { return s.ID }

// KnownSkills is the built-in capability catalog. Rows may name skills
// outside it; the catalog only supplies display descriptions.
var KnownSkills = map[string]string{
	"web_search":      "Search the web for information",
	"code_execution":  "Run code snippets and scripts",
	"database_access": "Query and modify stored data",
	"file_system":     "Read and write local files",
	"telegram_bot":    "Send and receive Telegram messages",
	"calendar_sync":   "Manage calendar events",
	"email":           "Send emails via SMTP",
	"github":          "Interact with GitHub repos",
	"webhooks":        "Trigger external webhooks",
}

// SkillDefaults fills a missing description from the catalog. New skills
// start disabled until toggled on explicitly.
func SkillDefaults(s Skill) Skill {
	if s.Description == nil || *s.Description == "" {
		if desc, ok := KnownSkills[s.Name]; ok {
			s.Description = &desc
		}
	}
	return s
}

// ValidateSkill rejects unnamed skills.
func ValidateSkill(s Skill) error {
	if s.Name == "" {
		return &resource.ValidationError{Table: TableSkills, Reason: "skill", Err: errors.New("name is required")}
	}
	return nil
}

// SkillLess sorts by name.
func SkillLess(a, b Skill) bool { return a.Name < b.Name }

// EnabledSkills returns the enabled subset in input order.
func EnabledSkills(skills []Skill) []Skill {
	var out []Skill
	for _, s := range skills {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}
