package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// sets RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	HeartbeatChanged bool
	HistoryChanged   bool

	// RestartRequired is set when a field that cannot be applied at runtime
	// changed, such as the listen address, database DSN, or feed driver.
	RestartRequired bool
}

// Empty reports whether no tracked field changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.HeartbeatChanged && !d.HistoryChanged && !d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Heartbeat.FreshnessSeconds != new.Heartbeat.FreshnessSeconds {
		d.HeartbeatChanged = true
	}
	if old.Chat.HistoryLimit != new.Chat.HistoryLimit {
		d.HistoryChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = true
	}
	if tlsChanged(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = true
	}
	if old.Database.DSN != new.Database.DSN {
		d.RestartRequired = true
	}
	if old.Feed != new.Feed {
		d.RestartRequired = true
	}
	if old.Secrets.Key != new.Secrets.Key {
		d.RestartRequired = true
	}

	return d
}

func tlsChanged(old, new *TLSConfig) bool {
	if (old == nil) != (new == nil) {
		return true
	}
	if old == nil {
		return false
	}
	return *old != *new
}
