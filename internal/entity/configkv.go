package entity

import (
	"errors"
	"maps"
	"time"

	"github.com/archos-hq/archos/pkg/resource"
)

// TableConfig holds assistant settings as one row per key.
const TableConfig = "bot_config"

// Well-known config keys.
const (
	KeySystemPrompt   = "system_prompt"
	KeyTemperature    = "temperature"
	KeyModel          = "model"
	KeyStreaming      = "streaming"
	KeyAutonomousMode = "autonomous_mode"
)

// ConfigEntry is one settings row. Value carries arbitrary JSON.
type ConfigEntry struct {
	ID        string    `db:"id" json:"id"`
	Key       string    `db:"key" json:"key"`
	Value     any       `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (c ConfigEntry) EntityID() string { return c.ID }

// ValidateConfigEntry rejects rows without a key.
func ValidateConfigEntry(c ConfigEntry) error {
	if c.Key == "" {
		return &resource.ValidationError{Table: TableConfig, Reason: "config entry", Err: errors.New("key is required")}
	}
	return nil
}

// ConfigLess sorts by key.
func ConfigLess(a, b ConfigEntry) bool { return a.Key < b.Key }

// ConfigValues is the typed view over the settings rows. Known keys are
// promoted to fields when their value has the expected type; everything
// else, including mistyped known keys, stays reachable via [ConfigValues.Get]
// so no row is lost in the round trip.
type ConfigValues struct {
	SystemPrompt   string
	Temperature    float64
	Model          string
	Streaming      bool
	AutonomousMode bool

	pairs map[string]any
}

// ParseConfigValues builds the typed view from settings rows. Later rows win
// on duplicate keys.
func ParseConfigValues(rows []ConfigEntry) ConfigValues {
	v := ConfigValues{pairs: make(map[string]any, len(rows))}
	for _, row := range rows {
		v.pairs[row.Key] = row.Value
		switch row.Key {
		case KeySystemPrompt:
			if s, ok := row.Value.(string); ok {
				v.SystemPrompt = s
			}
		case KeyTemperature:
			if f, ok := row.Value.(float64); ok {
				v.Temperature = f
			}
		case KeyModel:
			if s, ok := row.Value.(string); ok {
				v.Model = s
			}
		case KeyStreaming:
			if b, ok := row.Value.(bool); ok {
				v.Streaming = b
			}
		case KeyAutonomousMode:
			if b, ok := row.Value.(bool); ok {
				v.AutonomousMode = b
			}
		}
	}
	return v
}

// Get returns the raw value for any key, known or not.
func (v ConfigValues) Get(key string) (any, bool) {
	val, ok := v.pairs[key]
	return val, ok
}

// Pairs returns a copy of every key/value pair the rows carried.
func (v ConfigValues) Pairs() map[string]any {
	return maps.Clone(v.pairs)
}
