// Package hub assembles one synchronized collection per ARCHOS resource and
// manages their shared lifecycle. It is the single place where tables, the
// change feed, and per-resource policies (defaults, validation, sort order)
// are wired together; the gateway and any embedding code consume the typed
// accessors or the uniform [Resource] views.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/archos-hq/archos/internal/entity"
	"github.com/archos-hq/archos/internal/observe"
	"github.com/archos-hq/archos/internal/store"
	"github.com/archos-hq/archos/pkg/feed"
	"github.com/archos-hq/archos/pkg/resource"
)

// Tables bundles the persistence backends for every resource. Use
// [NewStoreTables] for PostgreSQL or [NewMemTables] for the in-memory driver.
type Tables struct {
	Tickets    resource.Table[entity.Ticket]
	Clients    resource.Table[entity.Client]
	Projects   resource.Table[entity.Project]
	Messages   resource.Table[entity.Message]
	BrainDump  resource.Table[entity.BrainDumpNote]
	Knowledge  resource.Table[entity.KnowledgeEntry]
	Config     resource.Table[entity.ConfigEntry]
	Secrets    resource.Table[entity.Secret]
	Skills     resource.Table[entity.Skill]
	Cron       resource.Table[entity.CronJob]
	Heartbeats resource.Table[entity.Heartbeat]
	Files      resource.Table[entity.File]
	Models     resource.Table[entity.Model]
	Voices     resource.Table[entity.Voice]
}

// NewStoreTables binds every resource to PostgreSQL. A non-nil pub makes
// each table announce committed mutations itself; leave it nil when the
// schema triggers already feed the change channel.
func NewStoreTables(db store.DB, pub feed.Publisher) Tables {
	return Tables{
		Tickets:    store.Tickets(db, storeOpts[entity.Ticket](pub)...),
		Clients:    store.Clients(db, storeOpts[entity.Client](pub)...),
		Projects:   store.Projects(db, storeOpts[entity.Project](pub)...),
		Messages:   store.Messages(db, storeOpts[entity.Message](pub)...),
		BrainDump:  store.BrainDump(db, storeOpts[entity.BrainDumpNote](pub)...),
		Knowledge:  store.Knowledge(db, storeOpts[entity.KnowledgeEntry](pub)...),
		Config:     store.Config(db, storeOpts[entity.ConfigEntry](pub)...),
		Secrets:    store.Secrets(db, storeOpts[entity.Secret](pub)...),
		Skills:     store.Skills(db, storeOpts[entity.Skill](pub)...),
		Cron:       store.Cron(db, storeOpts[entity.CronJob](pub)...),
		Heartbeats: store.Heartbeats(db, storeOpts[entity.Heartbeat](pub)...),
		Files:      store.Files(db, storeOpts[entity.File](pub)...),
		Models:     store.Models(db, storeOpts[entity.Model](pub)...),
		Voices:     store.Voices(db, storeOpts[entity.Voice](pub)...),
	}
}

func storeOpts[T resource.Entity](pub feed.Publisher) []store.TableOption[T] {
	if pub == nil {
		return nil
	}
	return []store.TableOption[T]{store.WithPublisher[T](pub)}
}

// NewMemTables binds every resource to in-memory tables, for tests and the
// offline demo driver. Mutations are announced on pub when non-nil.
func NewMemTables(pub feed.Publisher) Tables {
	var opts []resource.MemOption
	if pub != nil {
		opts = append(opts, resource.WithPublisher(pub))
	}
	return Tables{
		Tickets:    resource.NewMemTable[entity.Ticket](entity.TableTickets, opts...),
		Clients:    resource.NewMemTable[entity.Client](entity.TableClients, opts...),
		Projects:   resource.NewMemTable[entity.Project](entity.TableProjects, opts...),
		Messages:   resource.NewMemTable[entity.Message](entity.TableMessages, opts...),
		BrainDump:  resource.NewMemTable[entity.BrainDumpNote](entity.TableBrainDump, opts...),
		Knowledge:  resource.NewMemTable[entity.KnowledgeEntry](entity.TableKnowledge, opts...),
		Config:     resource.NewMemTable[entity.ConfigEntry](entity.TableConfig, opts...),
		Secrets:    resource.NewMemTable[entity.Secret](entity.TableSecrets, opts...),
		Skills:     resource.NewMemTable[entity.Skill](entity.TableSkills, opts...),
		Cron:       resource.NewMemTable[entity.CronJob](entity.TableCron, opts...),
		Heartbeats: resource.NewMemTable[entity.Heartbeat](entity.TableHeartbeats, opts...),
		Files:      resource.NewMemTable[entity.File](entity.TableFiles, opts...),
		Models:     resource.NewMemTable[entity.Model](entity.TableModels, opts...),
		Voices:     resource.NewMemTable[entity.Voice](entity.TableVoices, opts...),
	}
}

// Option configures a [Hub].
type Option func(*options)

type options struct {
	log          *slog.Logger
	metrics      *observe.Metrics
	historyLimit int
	freshness    time.Duration
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithHistoryLimit caps the loaded chat transcript. Defaults to
// [entity.DefaultHistoryLimit].
func WithHistoryLimit(n int) Option {
	return func(o *options) { o.historyLimit = n }
}

// WithHeartbeatFreshness overrides the liveness window. Defaults to
// [entity.DefaultFreshness].
func WithHeartbeatFreshness(d time.Duration) Option {
	return func(o *options) { o.freshness = d }
}

// Hub owns the per-resource collections.
type Hub struct {
	log     *slog.Logger
	metrics *observe.Metrics

	freshMu   sync.RWMutex
	freshness time.Duration

	watching  int
	closeOnce sync.Once

	tickets    *resource.Collection[entity.Ticket]
	clients    *resource.Collection[entity.Client]
	projects   *resource.Collection[entity.Project]
	messages   *resource.Collection[entity.Message]
	brainDump  *resource.Collection[entity.BrainDumpNote]
	knowledge  *resource.Collection[entity.KnowledgeEntry]
	config     *resource.Collection[entity.ConfigEntry]
	secrets    *resource.Collection[entity.Secret]
	skills     *resource.Collection[entity.Skill]
	cron       *resource.Collection[entity.CronJob]
	heartbeats *resource.Collection[entity.Heartbeat]
	files      *resource.Collection[entity.File]
	models     *resource.Collection[entity.Model]
	voices     *resource.Collection[entity.Voice]

	byName map[string]Resource
	order  []string
}

// New wires one collection per resource over the given tables and feed.
// Call [Hub.Start] to load snapshots and begin watching.
func New(tables Tables, f feed.Feed, opts ...Option) (*Hub, error) {
	o := options{
		log:          slog.Default(),
		historyLimit: entity.DefaultHistoryLimit,
		freshness:    entity.DefaultFreshness,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}

	h := &Hub{log: o.log, metrics: o.metrics, freshness: o.freshness, byName: make(map[string]Resource)}

	var err error
	h.tickets, err = build(h, resource.Options[entity.Ticket]{
		Table:    tables.Tickets,
		Name:     entity.TableTickets,
		Feed:     f,
		Less:     entity.TicketLess,
		Defaults: entity.TicketDefaults,
		Validate: entity.ValidateTicket,
		Decode:   decodeJSON[entity.Ticket],
		Logger:   o.log,
	}, err)
	h.clients, err = build(h, resource.Options[entity.Client]{
		Table:    tables.Clients,
		Name:     entity.TableClients,
		Feed:     f,
		Less:     entity.ClientLess,
		Defaults: entity.ClientDefaults,
		Validate: entity.ValidateClient,
		Decode:   decodeJSON[entity.Client],
		Logger:   o.log,
	}, err)
	h.projects, err = build(h, resource.Options[entity.Project]{
		Table:    tables.Projects,
		Name:     entity.TableProjects,
		Feed:     f,
		Less:     entity.ProjectLess,
		Defaults: entity.ProjectDefaults,
		Validate: entity.ValidateProject,
		Decode:   decodeJSON[entity.Project],
		Logger:   o.log,
	}, err)
	h.messages, err = build(h, resource.Options[entity.Message]{
		Table:    tables.Messages,
		Name:     entity.TableMessages,
		Feed:     f,
		Less:     entity.MessageLess,
		Defaults: entity.MessageDefaults,
		Validate: entity.ValidateMessage,
		Decode:   decodeJSON[entity.Message],
		Limit:    o.historyLimit,
		Logger:   o.log,
	}, err)
	h.brainDump, err = build(h, resource.Options[entity.BrainDumpNote]{
		Table:    tables.BrainDump,
		Name:     entity.TableBrainDump,
		Feed:     f,
		Less:     entity.BrainDumpLess,
		Validate: entity.ValidateBrainDump,
		Decode:   decodeJSON[entity.BrainDumpNote],
		Logger:   o.log,
	}, err)
	h.knowledge, err = build(h, resource.Options[entity.KnowledgeEntry]{
		Table:    tables.Knowledge,
		Name:     entity.TableKnowledge,
		Feed:     f,
		Less:     entity.KnowledgeLess,
		Defaults: entity.KnowledgeDefaults,
		Validate: entity.ValidateKnowledge,
		Decode:   decodeJSON[entity.KnowledgeEntry],
		Logger:   o.log,
	}, err)
	h.config, err = build(h, resource.Options[entity.ConfigEntry]{
		Table:    tables.Config,
		Name:     entity.TableConfig,
		Feed:     f,
		Less:     entity.ConfigLess,
		Validate: entity.ValidateConfigEntry,
		Decode:   decodeJSON[entity.ConfigEntry],
		Logger:   o.log,
	}, err)
	h.secrets, err = build(h, resource.Options[entity.Secret]{
		Table:    tables.Secrets,
		Name:     entity.TableSecrets,
		Feed:     f,
		Less:     entity.SecretLess,
		Validate: entity.ValidateSecret,
		Decode:   decodeJSON[entity.Secret],
		Logger:   o.log,
	}, err)
	h.skills, err = build(h, resource.Options[entity.Skill]{
		Table:    tables.Skills,
		Name:     entity.TableSkills,
		Feed:     f,
		Less:     entity.SkillLess,
		Defaults: entity.SkillDefaults,
		Validate: entity.ValidateSkill,
		Decode:   decodeJSON[entity.Skill],
		Logger:   o.log,
	}, err)
	h.cron, err = build(h, resource.Options[entity.CronJob]{
		Table:    tables.Cron,
		Name:     entity.TableCron,
		Feed:     f,
		Less:     entity.CronLess,
		Validate: entity.ValidateCronJob,
		Decode:   decodeJSON[entity.CronJob],
		Logger:   o.log,
	}, err)
	h.heartbeats, err = build(h, resource.Options[entity.Heartbeat]{
		Table:    tables.Heartbeats,
		Name:     entity.TableHeartbeats,
		Feed:     f,
		Less:     entity.HeartbeatLess,
		Defaults: entity.HeartbeatDefaults,
		Validate: entity.ValidateHeartbeat,
		Decode:   decodeJSON[entity.Heartbeat],
		Logger:   o.log,
	}, err)
	h.files, err = build(h, resource.Options[entity.File]{
		Table:    tables.Files,
		Name:     entity.TableFiles,
		Feed:     f,
		Less:     entity.FileLess,
		Defaults: entity.FileDefaults,
		Validate: entity.ValidateFile,
		Decode:   decodeJSON[entity.File],
		Logger:   o.log,
	}, err)
	h.models, err = build(h, resource.Options[entity.Model]{
		Table:    tables.Models,
		Name:     entity.TableModels,
		Feed:     f,
		Less:     entity.ModelLess,
		Validate: entity.ValidateModel,
		Decode:   decodeJSON[entity.Model],
		Logger:   o.log,
	}, err)
	h.voices, err = build(h, resource.Options[entity.Voice]{
		Table:    tables.Voices,
		Name:     entity.TableVoices,
		Feed:     f,
		Less:     entity.VoiceLess,
		Defaults: entity.VoiceDefaults,
		Validate: entity.ValidateVoice,
		Decode:   decodeJSON[entity.Voice],
		Logger:   o.log,
	}, err)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// build creates one collection and registers its uniform view, threading a
// previous error through so New reads as a flat wiring list.
func build[T resource.Entity](h *Hub, opts resource.Options[T], prev error) (*resource.Collection[T], error) {
	if prev != nil {
		return nil, prev
	}
	opts.OnEvent = h.onEvent
	c, err := resource.New(opts)
	if err != nil {
		return nil, err
	}
	h.byName[opts.Name] = view[T]{c}
	h.order = append(h.order, opts.Name)
	return c, nil
}

// Start subscribes every collection to the feed, then loads the initial
// snapshots. Watching begins before loading so changes committed during the
// load window are not missed. Individual load failures are logged and leave
// that collection empty-but-watching; they do not abort startup.
func (h *Hub) Start(ctx context.Context) error {
	for _, name := range h.order {
		if err := h.byName[name].(watcher).watch(ctx); err != nil {
			return err
		}
		h.watching++
		h.metrics.ActiveWatchers.Add(ctx, 1)
	}
	for _, name := range h.order {
		start := time.Now()
		if err := h.byName[name].Reload(ctx); err != nil {
			h.log.Warn("initial load failed", "resource", name, "err", err)
			continue
		}
		h.metrics.RecordLoad(ctx, name, time.Since(start).Seconds())
	}
	return nil
}

// Close tears down every collection. Idempotent.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		for _, name := range h.order {
			h.byName[name].(watcher).close()
		}
		h.metrics.ActiveWatchers.Add(context.Background(), int64(-h.watching))
		h.watching = 0
	})
}

// onEvent feeds per-collection event consumption into the metrics sink.
func (h *Hub) onEvent(table, op string) {
	h.metrics.RecordFeedEvent(context.Background(), table, op)
}

// Resource returns the uniform view for one table name.
func (h *Hub) Resource(name string) (Resource, bool) {
	r, ok := h.byName[name]
	return r, ok
}

// Names lists the resource table names in wiring order.
func (h *Hub) Names() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Typed accessors.

func (h *Hub) Tickets() *resource.Collection[entity.Ticket]          { return h.tickets }
func (h *Hub) Clients() *resource.Collection[entity.Client]          { return h.clients }
func (h *Hub) Projects() *resource.Collection[entity.Project]        { return h.projects }
func (h *Hub) Messages() *resource.Collection[entity.Message]        { return h.messages }
func (h *Hub) BrainDump() *resource.Collection[entity.BrainDumpNote] { return h.brainDump }
func (h *Hub) Knowledge() *resource.Collection[entity.KnowledgeEntry] {
	return h.knowledge
}
func (h *Hub) Config() *resource.Collection[entity.ConfigEntry]    { return h.config }
func (h *Hub) Secrets() *resource.Collection[entity.Secret]        { return h.secrets }
func (h *Hub) Skills() *resource.Collection[entity.Skill]          { return h.skills }
func (h *Hub) Cron() *resource.Collection[entity.CronJob]          { return h.cron }
func (h *Hub) Heartbeats() *resource.Collection[entity.Heartbeat]  { return h.heartbeats }
func (h *Hub) Files() *resource.Collection[entity.File]            { return h.files }
func (h *Hub) Models() *resource.Collection[entity.Model]          { return h.models }
func (h *Hub) Voices() *resource.Collection[entity.Voice]          { return h.voices }

// ConfigValues returns the typed view over the current settings snapshot.
func (h *Hub) ConfigValues() entity.ConfigValues {
	return entity.ParseConfigValues(h.config.Snapshot())
}

// DefaultModel picks the active model from the current snapshot.
func (h *Hub) DefaultModel() (entity.Model, bool) {
	return entity.DefaultModel(h.models.Snapshot())
}

// DefaultVoice picks the active voice from the current snapshot.
func (h *Hub) DefaultVoice() (entity.Voice, bool) {
	return entity.DefaultVoice(h.voices.Snapshot())
}

// KnowledgeCategories returns the wiki filter bar entries.
func (h *Hub) KnowledgeCategories() []string {
	return entity.Categories(h.knowledge.Snapshot())
}

// SearchKnowledge runs the wiki search over the current snapshot.
func (h *Hub) SearchKnowledge(query string) []entity.KnowledgeEntry {
	return entity.SearchKnowledge(h.knowledge.Snapshot(), query)
}

// SetHeartbeatFreshness changes the liveness window at runtime. Values
// of zero or less are ignored.
func (h *Hub) SetHeartbeatFreshness(d time.Duration) {
	if d <= 0 {
		return
	}
	h.freshMu.Lock()
	h.freshness = d
	h.freshMu.Unlock()
}

// SetHistoryLimit changes the chat transcript cap at runtime.
func (h *Hub) SetHistoryLimit(n int) {
	h.messages.SetLimit(n)
}

func (h *Hub) heartbeatFreshness() time.Duration {
	h.freshMu.RLock()
	defer h.freshMu.RUnlock()
	return h.freshness
}

// ServiceOnline reports liveness for a tracked service at now.
func (h *Hub) ServiceOnline(service string, now time.Time) bool {
	ok, err := entity.ServiceOnline(h.heartbeats.Snapshot(), service, now, h.heartbeatFreshness())
	return err == nil && ok
}

// ServiceStatus is one row of the dashboard's service status widget.
type ServiceStatus struct {
	Service  string                 `json:"service"`
	Status   entity.HeartbeatStatus `json:"status"`
	Online   bool                   `json:"online"`
	LastSeen string                 `json:"last_seen"`
}

// ServiceStatuses renders every tracked service with staleness applied.
func (h *Hub) ServiceStatuses(now time.Time) []ServiceStatus {
	window := h.heartbeatFreshness()
	beats := h.heartbeats.Snapshot()
	out := make([]ServiceStatus, len(beats))
	for i, b := range beats {
		out[i] = ServiceStatus{
			Service:  b.Service,
			Status:   b.EffectiveStatus(now, window),
			Online:   b.IsOnline(now, window),
			LastSeen: entity.FormatAge(now.Sub(b.LastBeat)),
		}
	}
	return out
}

func decodeJSON[T any](b []byte) (T, error) {
	var v T
	err := json.Unmarshal(b, &v)
	return v, err
}
