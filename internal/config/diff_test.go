package config

import "testing"

func baseConfig() *Config {
	return &Config{
		Server:    ServerConfig{ListenAddr: ":8484", LogLevel: LogInfo},
		Database:  DatabaseConfig{DSN: "postgres://localhost/archos"},
		Feed:      FeedConfig{Driver: FeedPostgres},
		Heartbeat: HeartbeatConfig{FreshnessSeconds: 30},
		Chat:      ChatConfig{HistoryLimit: 100},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	d := Diff(old, new)
	if !d.Empty() {
		t.Errorf("diff of identical configs = %+v, want empty", d)
	}
}

func TestDiff_HotReloadable(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = LogDebug
	new.Heartbeat.FreshnessSeconds = 60
	new.Chat.HistoryLimit = 200

	d := Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != LogDebug {
		t.Errorf("log level change not detected: %+v", d)
	}
	if !d.HeartbeatChanged {
		t.Error("heartbeat change not detected")
	}
	if !d.HistoryChanged {
		t.Error("history limit change not detected")
	}
	if d.RestartRequired {
		t.Error("hot-reloadable changes flagged as restart-required")
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"listen addr", func(c *Config) { c.Server.ListenAddr = ":9000" }},
		{"tls added", func(c *Config) { c.Server.TLS = &TLSConfig{CertFile: "c", KeyFile: "k"} }},
		{"database dsn", func(c *Config) { c.Database.DSN = "postgres://elsewhere/archos" }},
		{"feed driver", func(c *Config) { c.Feed.Driver = FeedRedis }},
		{"redis addr", func(c *Config) { c.Feed.Redis.Addr = "localhost:6379" }},
		{"secrets key", func(c *Config) { c.Secrets.Key = "bmV3a2V5" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			old, new := baseConfig(), baseConfig()
			tc.mutate(new)
			if d := Diff(old, new); !d.RestartRequired {
				t.Errorf("change not flagged as restart-required: %+v", d)
			}
		})
	}
}
