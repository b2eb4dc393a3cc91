package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the typed view of a reefrush YAML document.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Client    ClientConfig    `yaml:"client"`
	Log       LogConfig       `yaml:"log"`
	Field     FieldConfig     `yaml:"field"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	PowerUps  PowerUpsConfig  `yaml:"powerups"`
}

type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	QUICAddr     string        `yaml:"quic_addr"`
	MaxClients   int           `yaml:"max_clients"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type ClientConfig struct {
	ServerURL string `yaml:"server_url"`
	Name      string `yaml:"name"`
	// Autopilot lets a bot steer, re-deciding every n ticks. Zero disables it.
	Autopilot int `yaml:"autopilot_every_ticks"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type FieldConfig struct {
	Width          float64 `yaml:"width"`
	Height         float64 `yaml:"height"`
	ViewportWidth  float64 `yaml:"viewport_width"`
	ViewportHeight float64 `yaml:"viewport_height"`
	SpawnEvery     int     `yaml:"spawn_every_ticks"`
	MaxEnemies     int     `yaml:"max_enemies"`
	PlayerSize     float64 `yaml:"player_size"`
}

type BroadcastConfig struct {
	EveryTicks int    `yaml:"every_ticks"`
	Codec      string `yaml:"codec"`
}

type PowerUpsConfig struct {
	SpeedBoost PowerUpConfig `yaml:"speed_boost"`
	Growth     PowerUpConfig `yaml:"growth"`
}

type PowerUpConfig struct {
	DurationSeconds float64 `yaml:"duration_seconds"`
	Factor          float64 `yaml:"factor"`
	Enabled         bool    `yaml:"enabled"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:   "127.0.0.1:8080",
			QUICAddr:     "",
			MaxClients:   64,
			WriteTimeout: 5 * time.Second,
		},
		Client: ClientConfig{
			ServerURL: "ws://127.0.0.1:8080/ws",
			Name:      "guppy",
		},
		Log: LogConfig{Level: "info"},
		Field: FieldConfig{
			Width:          4000,
			Height:         3000,
			ViewportWidth:  1280,
			ViewportHeight: 720,
			SpawnEvery:     30,
			MaxEnemies:     40,
			PlayerSize:     32,
		},
		Broadcast: BroadcastConfig{
			EveryTicks: 3,
			Codec:      "json",
		},
		PowerUps: PowerUpsConfig{
			SpeedBoost: PowerUpConfig{DurationSeconds: 10, Factor: 1.5, Enabled: true},
			Growth:     PowerUpConfig{DurationSeconds: 8, Factor: 1.25, Enabled: true},
		},
	}
}

// Validate reports the first nonsensical value.
func (c Config) Validate() error {
	switch {
	case c.Field.Width <= 0 || c.Field.Height <= 0:
		return fmt.Errorf("%w: field dimensions must be positive", ErrInvalidConfig)
	case c.Field.SpawnEvery < 0 || c.Field.MaxEnemies < 0:
		return fmt.Errorf("%w: spawn settings must not be negative", ErrInvalidConfig)
	case c.Broadcast.EveryTicks <= 0:
		return fmt.Errorf("%w: broadcast.every_ticks must be positive", ErrInvalidConfig)
	case c.Broadcast.Codec != "json" && c.Broadcast.Codec != "msgpack":
		return fmt.Errorf("%w: unknown codec %q", ErrInvalidConfig, c.Broadcast.Codec)
	case c.Server.MaxClients <= 0:
		return fmt.Errorf("%w: server.max_clients must be positive", ErrInvalidConfig)
	}
	return nil
}

// Load reads a YAML document on top of Default and returns both the typed view
// and the flattened named settings.
func Load(r io.Reader) (Config, *Settings, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, nil, err
	}

	cfg := Default()
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, nil, fmt.Errorf("decode config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, nil, err
	}

	settings, err := SettingsFromConfig(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, settings, nil
}

// LoadFile is Load for a path. An empty path yields the defaults.
func LoadFile(path string) (Config, *Settings, error) {
	if path == "" {
		cfg := Default()
		settings, err := SettingsFromConfig(cfg)
		return cfg, settings, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, nil, err
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}
