package entity

import (
	"errors"

	"github.com/archos-hq/archos/pkg/resource"
)

// Tables for the assistant's selectable models and voices.
const (
	TableModels = "bot_models"
	TableVoices = "bot_voices"
)

// Model is one selectable LLM configuration.
type Model struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Provider  string         `db:"provider" json:"provider"`
	ModelID   string         `db:"model_id" json:"model_id"`
	Enabled   bool           `db:"enabled" json:"enabled"`
	IsDefault bool           `db:"is_default" json:"is_default"`
	Config    map[string]any `db:"config" json:"config"`
}

func (m Model) EntityID() string { return m.ID }

// ValidateModel rejects models missing identity fields.
func ValidateModel(m Model) error {
	var errs []error
	if m.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if m.Provider == "" {
		errs = append(errs, errors.New("provider is required"))
	}
	if m.ModelID == "" {
		errs = append(errs, errors.New("model_id is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return &resource.ValidationError{Table: TableModels, Reason: "model", Err: err}
	}
	return nil
}

// ModelLess sorts by name.
func ModelLess(a, b Model) bool { return a.Name < b.Name }

// DefaultModel picks the flagged default among enabled models, falling back
// to the first enabled one. Returns false when nothing is enabled.
func DefaultModel(models []Model) (Model, bool) {
	var first *Model
	for i, m := range models {
		if !m.Enabled {
			continue
		}
		if m.IsDefault {
			return m, true
		}
		if first == nil {
			first = &models[i]
		}
	}
	if first != nil {
		return *first, true
	}
	return Model{}, false
}

// Voice is one selectable TTS voice.
type Voice struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Provider  string `db:"provider" json:"provider"`
	VoiceID   string `db:"voice_id" json:"voice_id"`
	Language  string `db:"language" json:"language"`
	Enabled   bool   `db:"enabled" json:"enabled"`
	IsDefault bool   `db:"is_default" json:"is_default"`
}

func (v Voice) EntityID() string { return v.ID }

// VoiceDefaults assumes English when no language is set.
func VoiceDefaults(v Voice) Voice {
	if v.Language == "" {
		v.Language = "en"
	}
	return v
}

// ValidateVoice rejects voices missing identity fields.
func ValidateVoice(v Voice) error {
	var errs []error
	if v.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if v.Provider == "" {
		errs = append(errs, errors.New("provider is required"))
	}
	if v.VoiceID == "" {
		errs = append(errs, errors.New("voice_id is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return &resource.ValidationError{Table: TableVoices, Reason: "voice", Err: err}
	}
	return nil
}

// VoiceLess sorts by name.
func VoiceLess(a, b Voice) bool { return a.Name < b.Name }

// DefaultVoice picks the flagged default among enabled voices, falling back
// to the first enabled one.
func DefaultVoice(voices []Voice) (Voice, bool) {
	var first *Voice
	for i, v := range voices {
		if !v.Enabled {
			continue
		}
		if v.IsDefault {
			return v, true
		}
		if first == nil {
			first = &voices[i]
		}
	}
	if first != nil {
		return *first, true
	}
	return Voice{}, false
}
