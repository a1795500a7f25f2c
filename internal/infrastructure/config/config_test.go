package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"intellidraw/internal/infrastructure/logger"
)

func TestDefault_IsValid(t *testing.T) {
	if err := validate(Default()); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestLoad_Valid(t *testing.T) {
	yaml := `
server:
  addr: ":9000"
  shutdown_timeout: 2s
hub:
  send_timeout: 3s
  max_concurrent_sends: 16
websocket:
  pong_wait: 20s
  ping_period: 10s
cors:
  allowed_origins: ["*"]
relay:
  mode: redis
  redis:
    addr: "redis:6379"
log:
  level: debug
  format: json
`
	cfg := loadFromString(t, yaml)

	if cfg.Server.Addr != ":9000" {
		t.Errorf("server.addr: got %q", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout != 2*time.Second {
		t.Errorf("server.shutdown_timeout: got %v", cfg.Server.ShutdownTimeout)
	}
	if opts := cfg.Hub.Options(); opts.SendTimeout != 3*time.Second || opts.MaxConcurrentSends != 16 {
		t.Errorf("hub options: got %+v", opts)
	}
	if ws := cfg.WebSocket.Options(); ws.PongWait != 20*time.Second || ws.PingPeriod != 10*time.Second {
		t.Errorf("websocket options: got %+v", ws)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("cors.allowed_origins: got %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Relay.Mode != RelayModeRedis || cfg.Relay.Redis.Addr != "redis:6379" {
		t.Errorf("relay: got %+v", cfg.Relay)
	}
	if cfg.Relay.Redis.Channel != "intellidraw:broadcast" {
		t.Errorf("relay.redis.channel default lost: %q", cfg.Relay.Redis.Channel)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, "server:\n  addr: \":8000\"\n")

	if cfg.Analysis.Latency != 2*time.Second {
		t.Errorf("analysis.latency: got %v", cfg.Analysis.Latency)
	}
	if cfg.Analysis.DefaultPrompt != "What is in this image?" {
		t.Errorf("analysis.default_prompt: got %q", cfg.Analysis.DefaultPrompt)
	}
	if cfg.SSE.KeepAliveInterval != 30*time.Second {
		t.Errorf("sse.keepalive_interval: got %v", cfg.SSE.KeepAliveInterval)
	}
	if len(cfg.CORS.AllowedOrigins) != 3 {
		t.Errorf("cors.allowed_origins: got %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Relay.Mode != RelayModeLocal {
		t.Errorf("relay.mode: got %q", cfg.Relay.Mode)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"zero send timeout", "hub:\n  send_timeout: 0s\n", "hub.send_timeout"},
		{"ping after pong", "websocket:\n  pong_wait: 10s\n  ping_period: 10s\n", "ping_period"},
		{"negative sends", "hub:\n  max_concurrent_sends: -1\n", "max_concurrent_sends"},
		{"unknown relay", "relay:\n  mode: kafka\n", "relay.mode"},
		{"redis without addr", "relay:\n  mode: redis\n  redis:\n    addr: \"\"\n", "relay.redis.addr"},
		{"unknown level", "log:\n  level: verbose\n", "log.level"},
		{"file without path", "log:\n  output: file\n", "file_path"},
		{"empty addr", "server:\n  addr: \"\"\n", "server.addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("server: [")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLogConfig_LoggerConfig(t *testing.T) {
	lc := LogConfig{Level: "warn", Format: "json", Output: "stderr", MaxSize: 5}

	cfg, err := lc.LoggerConfig()
	if err != nil {
		t.Fatalf("LoggerConfig: %v", err)
	}
	if cfg.Level != logger.LevelWarn {
		t.Errorf("level: got %v", cfg.Level)
	}
	if cfg.Format != "json" || cfg.Output != "stderr" || cfg.MaxSize != 5 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.MaxBackups != 3 {
		t.Errorf("max_backups default lost: %d", cfg.MaxBackups)
	}
	if cfg.Fields["service"] != "intellidraw" {
		t.Errorf("default fields missing: %v", cfg.Fields)
	}

	if _, err := (LogConfig{Level: "loud"}).LoggerConfig(); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, logger.Discard(), func(cfg *Config) { changes <- cfg })
	}()

	// Keep rewriting until the watcher is registered and reports a change.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-changes:
			if cfg.Log.Level != "debug" {
				t.Errorf("reloaded level: got %q", cfg.Log.Level)
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch returned %v", err)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestWatch_InvalidReloadKeepsPrevious(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 1)
	go func() {
		_ = Watch(ctx, path, logger.Discard(), func(cfg *Config) { changes <- cfg })
	}()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("log:\n  level: shouting\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changes:
		t.Errorf("invalid config delivered: %+v", cfg.Log)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), logger.Discard(), func(*Config) {})
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "intellidraw.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "config.example.yaml"))
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	want := Default()
	if cfg.Server.Addr != want.Server.Addr || cfg.Relay.Mode != want.Relay.Mode || cfg.Analysis != want.Analysis {
		t.Errorf("example config drifted from defaults: %+v", cfg)
	}
}
