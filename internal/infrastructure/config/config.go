package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"intellidraw/internal/infrastructure/hub"
	"intellidraw/internal/infrastructure/logger"
)

// EnvPath names the environment variable consulted when no -config flag is given.
const EnvPath = "INTELLIDRAW_CONFIG"

const (
	RelayModeLocal = "local"
	RelayModeRedis = "redis"
)

// Config is the top-level configuration of the intellidraw server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Hub       HubConfig       `yaml:"hub"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	SSE       SSEConfig       `yaml:"sse"`
	CORS      CORSConfig      `yaml:"cors"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Relay     RelayConfig     `yaml:"relay"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type HubConfig struct {
	// SendTimeout bounds one delivery to one connection.
	SendTimeout time.Duration `yaml:"send_timeout"`

	// MaxConcurrentSends caps in-flight sends per broadcast. 0 is unbounded.
	MaxConcurrentSends int `yaml:"max_concurrent_sends"`
}

// Options converts the section into hub options.
func (c HubConfig) Options() hub.Options {
	return hub.Options{
		SendTimeout:        c.SendTimeout,
		MaxConcurrentSends: c.MaxConcurrentSends,
	}
}

type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	PongWait        time.Duration `yaml:"pong_wait"`
	PingPeriod      time.Duration `yaml:"ping_period"`
}

// Options converts the section into per-connection transport options.
func (c WebSocketConfig) Options() hub.WebSocketOptions {
	return hub.WebSocketOptions{
		WriteTimeout:    c.WriteTimeout,
		PongWait:        c.PongWait,
		PingPeriod:      c.PingPeriod,
		MaxMessageBytes: c.MaxMessageBytes,
	}
}

type SSEConfig struct {
	KeepAliveInterval time.Duration `yaml:"keepalive_interval"`
}

type CORSConfig struct {
	// AllowedOrigins lists exact origins; "*" allows any.
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

type AnalysisConfig struct {
	// Latency is how long the simulated analyzer takes to answer.
	Latency       time.Duration `yaml:"latency"`
	DefaultPrompt string        `yaml:"default_prompt"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxImageBytes int           `yaml:"max_image_bytes"`
}

type RelayConfig struct {
	// Mode is one of: local | redis.
	Mode  string      `yaml:"mode"`
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// LogConfig mirrors logger.Config with a textual level.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// LoggerConfig overlays the section onto logger.NewDefaultConfig.
func (c LogConfig) LoggerConfig() (*logger.Config, error) {
	cfg := logger.NewDefaultConfig()

	level, err := logger.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	cfg.Level = level

	if c.Format != "" {
		cfg.Format = c.Format
	}
	if c.Output != "" {
		cfg.Output = c.Output
	}
	if c.FilePath != "" {
		cfg.FilePath = c.FilePath
	}
	if c.MaxSize > 0 {
		cfg.MaxSize = c.MaxSize
	}
	if c.MaxBackups > 0 {
		cfg.MaxBackups = c.MaxBackups
	}
	if c.MaxAge > 0 {
		cfg.MaxAge = c.MaxAge
	}
	cfg.Compress = c.Compress

	return cfg, nil
}

// Load reads and parses the YAML config file at path.
// Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config pre-populated with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Hub: HubConfig{
			SendTimeout: 10 * time.Second,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			MaxMessageBytes: 1 << 20,
			WriteTimeout:    10 * time.Second,
			PongWait:        60 * time.Second,
			PingPeriod:      54 * time.Second,
		},
		SSE: SSEConfig{
			KeepAliveInterval: 30 * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost",
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			},
			AllowCredentials: true,
		},
		Analysis: AnalysisConfig{
			Latency:       2 * time.Second,
			DefaultPrompt: "What is in this image?",
			Timeout:       30 * time.Second,
			MaxImageBytes: 10 << 20,
		},
		Relay: RelayConfig{
			Mode: RelayModeLocal,
			Redis: RedisConfig{
				Addr:    "localhost:6379",
				Channel: "intellidraw:broadcast",
			},
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stdout",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		},
	}
}

// validate checks structural constraints.
func validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	positive := []struct {
		name string
		v    time.Duration
	}{
		{"server.read_timeout", cfg.Server.ReadTimeout},
		{"server.write_timeout", cfg.Server.WriteTimeout},
		{"server.idle_timeout", cfg.Server.IdleTimeout},
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeout},
		{"hub.send_timeout", cfg.Hub.SendTimeout},
		{"websocket.write_timeout", cfg.WebSocket.WriteTimeout},
		{"websocket.pong_wait", cfg.WebSocket.PongWait},
		{"websocket.ping_period", cfg.WebSocket.PingPeriod},
		{"sse.keepalive_interval", cfg.SSE.KeepAliveInterval},
		{"analysis.timeout", cfg.Analysis.Timeout},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%s must be positive", p.name)
		}
	}

	if cfg.Hub.MaxConcurrentSends < 0 {
		return fmt.Errorf("hub.max_concurrent_sends must not be negative")
	}
	if cfg.WebSocket.PingPeriod >= cfg.WebSocket.PongWait {
		return fmt.Errorf("websocket.ping_period must be less than websocket.pong_wait")
	}
	if cfg.WebSocket.ReadBufferSize < 0 || cfg.WebSocket.WriteBufferSize < 0 {
		return fmt.Errorf("websocket buffer sizes must not be negative")
	}
	if cfg.WebSocket.MaxMessageBytes <= 0 {
		return fmt.Errorf("websocket.max_message_bytes must be positive")
	}
	if cfg.Analysis.Latency < 0 {
		return fmt.Errorf("analysis.latency must not be negative")
	}
	if cfg.Analysis.MaxImageBytes < 0 {
		return fmt.Errorf("analysis.max_image_bytes must not be negative")
	}

	switch cfg.Relay.Mode {
	case RelayModeLocal:
	case RelayModeRedis:
		if cfg.Relay.Redis.Addr == "" {
			return fmt.Errorf("relay.redis.addr is required in redis mode")
		}
		if cfg.Relay.Redis.Channel == "" {
			return fmt.Errorf("relay.redis.channel is required in redis mode")
		}
	default:
		return fmt.Errorf("relay.mode: unknown mode %q", cfg.Relay.Mode)
	}

	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case "json", "text", "console":
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Log.Format)
	}
	switch cfg.Log.Output {
	case "stdout", "stderr":
	case "file":
		if cfg.Log.FilePath == "" {
			return fmt.Errorf("log.file_path is required when log.output is file")
		}
	default:
		return fmt.Errorf("log.output: unknown output %q", cfg.Log.Output)
	}
	return nil
}
