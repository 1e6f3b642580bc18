package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/archos-hq/archos/pkg/resource"
)

// TableHeartbeats tracks liveness of companion services.
const TableHeartbeats = "bot_heartbeat"

// DefaultService is the heartbeat row the dashboard watches by default.
const DefaultService = "klaus"

// DefaultFreshness is how recent a beat must be to count as alive. Services
// beat every few seconds; a 30s gap means the process is gone even if its
// last written status still says online.
const DefaultFreshness = 30 * time.Second

// HeartbeatStatus is the service-reported state.
type HeartbeatStatus string

const (
	StatusOnline  HeartbeatStatus = "online"
	StatusOffline HeartbeatStatus = "offline"
	StatusError   HeartbeatStatus = "error"
)

// Heartbeat is one service's latest liveness report.
type Heartbeat struct {
	ID       string          `db:"id" json:"id"`
	Service  string          `db:"service" json:"service"`
	Status   HeartbeatStatus `db:"status" json:"status"`
	LastBeat time.Time       `db:"last_beat" json:"last_beat"`
	Metadata map[string]any  `db:"metadata" json:"metadata"`
}

func (h Heartbeat) EntityID() string { return h.ID }

// HeartbeatDefaults names the default service and stamps a missing beat time.
func HeartbeatDefaults(h Heartbeat) Heartbeat {
	if h.Service == "" {
		h.Service = DefaultService
	}
	if h.Status == "" {
		h.Status = StatusOnline
	}
	if h.LastBeat.IsZero() {
		h.LastBeat = time.Now().UTC()
	}
	return h
}

// ValidateHeartbeat rejects unknown statuses.
func ValidateHeartbeat(h Heartbeat) error {
	switch h.Status {
	case StatusOnline, StatusOffline, StatusError:
		return nil
	default:
		return &resource.ValidationError{Table: TableHeartbeats, Reason: "heartbeat", Err: fmt.Errorf("unknown status %q", h.Status)}
	}
}

// HeartbeatLess sorts by service name.
func HeartbeatLess(a, b Heartbeat) bool { return a.Service < b.Service }

// IsOnline reports whether the service is alive at now: it must report
// online and have beaten within the window.
func (h Heartbeat) IsOnline(now time.Time, window time.Duration) bool {
	return h.Status == StatusOnline && now.Sub(h.LastBeat) <= window
}

// EffectiveStatus downgrades a stale online report to offline.
func (h Heartbeat) EffectiveStatus(now time.Time, window time.Duration) HeartbeatStatus {
	if h.Status == StatusOnline && now.Sub(h.LastBeat) > window {
		return StatusOffline
	}
	return h.Status
}

// FormatAge renders the time since the last beat for the status widget.
func FormatAge(d time.Duration) string {
	switch s := int(d.Seconds()); {
	case s < 0:
		return "just now"
	case s < 60:
		return fmt.Sprintf("%ds ago", s)
	case s < 3600:
		return fmt.Sprintf("%dm ago", s/60)
	case s < 86400:
		return fmt.Sprintf("%dh ago", s/3600)
	default:
		return fmt.Sprintf("%dd ago", s/86400)
	}
}

// FindService returns the heartbeat row for the named service.
func FindService(beats []Heartbeat, service string) (Heartbeat, bool) {
	for _, h := range beats {
		if h.Service == service {
			return h, true
		}
	}
	return Heartbeat{}, false
}

var errNoService = errors.New("service not tracked")

// ServiceOnline reports liveness for the named service; untracked services
// count as offline.
func ServiceOnline(beats []Heartbeat, service string, now time.Time, window time.Duration) (bool, error) {
	h, ok := FindService(beats, service)
	if !ok {
		return false, fmt.Errorf("%s: %w", service, errNoService)
	}
	return h.IsOnline(now, window), nil
}
