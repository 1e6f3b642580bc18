package store

import (
	"encoding/json"

	"github.com/archos-hq/archos/internal/entity"
	"github.com/archos-hq/archos/pkg/resource"
)

// Compile-time interface check.
var _ resource.Table[entity.Ticket] = (*Table[entity.Ticket])(nil)

// Tickets creates the kanban board's table.
func Tickets(db DB, opts ...TableOption[entity.Ticket]) *Table[entity.Ticket] {
	return NewTable(db, Spec[entity.Ticket]{
		Table:        entity.TableTickets,
		HasUpdatedAt: true,
		Columns: func(t entity.Ticket) map[string]any {
			return map[string]any{
				"title":       t.Title,
				"description": t.Description,
				"status":      t.Status,
				"agent_mode":  t.AgentMode,
				"priority":    t.Priority,
				"source":      t.Source,
				"assignee":    t.Assignee,
				"due_date":    t.DueDate,
				"client_id":   t.ClientID,
				"project_id":  t.ProjectID,
				"context":     jsonb(t.Context),
			}
		},
	}, opts...)
}

// Clients creates the CRM contacts table.
func Clients(db DB, opts ...TableOption[entity.Client]) *Table[entity.Client] {
	return NewTable(db, Spec[entity.Client]{
		Table:        entity.TableClients,
		HasUpdatedAt: true,
		Columns: func(c entity.Client) map[string]any {
			return map[string]any{
				"name":     c.Name,
				"email":    c.Email,
				"phone":    c.Phone,
				"status":   c.Status,
				"industry": c.Industry,
				"notes":    c.Notes,
			}
		},
	}, opts...)
}

// Projects creates the client engagements table.
func Projects(db DB, opts ...TableOption[entity.Project]) *Table[entity.Project] {
	return NewTable(db, Spec[entity.Project]{
		Table:        entity.TableProjects,
		HasUpdatedAt: true,
		Columns: func(p entity.Project) map[string]any {
			return map[string]any{
				"client_id":   p.ClientID,
				"name":        p.Name,
				"description": p.Description,
				"status":      p.Status,
				"budget":      p.Budget,
				"currency":    p.Currency,
				"deadline":    p.Deadline,
			}
		},
	}, opts...)
}

// Messages creates the chat transcript table.
func Messages(db DB, opts ...TableOption[entity.Message]) *Table[entity.Message] {
	return NewTable(db, Spec[entity.Message]{
		Table: entity.TableMessages,
		Columns: func(m entity.Message) map[string]any {
			return map[string]any{
				"ticket_id": m.TicketID,
				"role":      m.Role,
				"channel":   m.Channel,
				"content":   m.Content,
				"metadata":  jsonb(emptyMap(m.Metadata)),
			}
		},
	}, opts...)
}

// BrainDump creates the capture notes table.
func BrainDump(db DB, opts ...TableOption[entity.BrainDumpNote]) *Table[entity.BrainDumpNote] {
	return NewTable(db, Spec[entity.BrainDumpNote]{
		Table: entity.TableBrainDump,
		Columns: func(n entity.BrainDumpNote) map[string]any {
			return map[string]any{
				"content":   n.Content,
				"processed": n.Processed,
			}
		},
	}, opts...)
}

// Knowledge creates the wiki table.
func Knowledge(db DB, opts ...TableOption[entity.KnowledgeEntry]) *Table[entity.KnowledgeEntry] {
	return NewTable(db, Spec[entity.KnowledgeEntry]{
		Table:        entity.TableKnowledge,
		HasUpdatedAt: true,
		Columns: func(k entity.KnowledgeEntry) map[string]any {
			return map[string]any{
				"title":    k.Title,
				"content":  k.Content,
				"category": k.Category,
				"tags":     k.Tags,
			}
		},
	}, opts...)
}

// Config creates the assistant settings table.
func Config(db DB, opts ...TableOption[entity.ConfigEntry]) *Table[entity.ConfigEntry] {
	return NewTable(db, Spec[entity.ConfigEntry]{
		Table:        entity.TableConfig,
		HasUpdatedAt: true,
		Columns: func(c entity.ConfigEntry) map[string]any {
			return map[string]any{
				"key":   c.Key,
				"value": jsonb(c.Value),
			}
		},
	}, opts...)
}

// Secrets creates the encrypted credentials table.
func Secrets(db DB, opts ...TableOption[entity.Secret]) *Table[entity.Secret] {
	return NewTable(db, Spec[entity.Secret]{
		Table:        entity.TableSecrets,
		HasUpdatedAt: true,
		Columns: func(s entity.Secret) map[string]any {
			return map[string]any{
				"name":            s.Name,
				"encrypted_value": s.EncryptedValue,
				"provider":        s.Provider,
			}
		},
	}, opts...)
}

// Skills creates the assistant capabilities table.
func Skills(db DB, opts ...TableOption[entity.Skill]) *Table[entity.Skill] {
	return NewTable(db, Spec[entity.Skill]{
		Table: entity.TableSkills,
		Columns: func(s entity.Skill) map[string]any {
			return map[string]any{
				"name":        s.Name,
				"description": s.Description,
				"enabled":     s.Enabled,
				"config":      jsonb(emptyMap(s.Config)),
			}
		},
	}, opts...)
}

// Cron creates the scheduled commands table.
func Cron(db DB, opts ...TableOption[entity.CronJob]) *Table[entity.CronJob] {
	return NewTable(db, Spec[entity.CronJob]{
		Table:        entity.TableCron,
		HasUpdatedAt: true,
		Columns: func(j entity.CronJob) map[string]any {
			return map[string]any{
				"name":        j.Name,
				"description": j.Description,
				"schedule":    j.Schedule,
				"command":     j.Command,
				"enabled":     j.Enabled,
				"last_run":    j.LastRun,
				"next_run":    j.NextRun,
			}
		},
	}, opts...)
}

// Heartbeats creates the service liveness table.
func Heartbeats(db DB, opts ...TableOption[entity.Heartbeat]) *Table[entity.Heartbeat] {
	return NewTable(db, Spec[entity.Heartbeat]{
		Table: entity.TableHeartbeats,
		Columns: func(h entity.Heartbeat) map[string]any {
			return map[string]any{
				"service":   h.Service,
				"status":    h.Status,
				"last_beat": h.LastBeat,
				"metadata":  jsonb(emptyMap(h.Metadata)),
			}
		},
	}, opts...)
}

// Files creates the upload index table.
func Files(db DB, opts ...TableOption[entity.File]) *Table[entity.File] {
	return NewTable(db, Spec[entity.File]{
		Table: entity.TableFiles,
		Columns: func(f entity.File) map[string]any {
			return map[string]any{
				"name":       f.Name,
				"path":       f.Path,
				"size_bytes": f.SizeBytes,
				"mime_type":  f.MimeType,
				"category":   f.Category,
			}
		},
	}, opts...)
}

// Models creates the selectable models table.
func Models(db DB, opts ...TableOption[entity.Model]) *Table[entity.Model] {
	return NewTable(db, Spec[entity.Model]{
		Table: entity.TableModels,
		Columns: func(m entity.Model) map[string]any {
			return map[string]any{
				"name":       m.Name,
				"provider":   m.Provider,
				"model_id":   m.ModelID,
				"enabled":    m.Enabled,
				"is_default": m.IsDefault,
				"config":     jsonb(emptyMap(m.Config)),
			}
		},
	}, opts...)
}

// Voices creates the selectable voices table.
func Voices(db DB, opts ...TableOption[entity.Voice]) *Table[entity.Voice] {
	return NewTable(db, Spec[entity.Voice]{
		Table: entity.TableVoices,
		Columns: func(v entity.Voice) map[string]any {
			return map[string]any{
				"name":       v.Name,
				"provider":   v.Provider,
				"voice_id":   v.VoiceID,
				"language":   v.Language,
				"enabled":    v.Enabled,
				"is_default": v.IsDefault,
			}
		},
	}, opts...)
}

// jsonb marshals a value for a JSONB column. pgx treats []byte as
// pre-encoded JSON for json/jsonb columns.
func jsonb(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}

// emptyMap ensures JSON marshalling produces "{}" instead of "null" for
// NOT NULL JSONB columns.
func emptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
