package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sample = `
log:
  level: debug
field:
  width: 800
  height: 600
broadcast:
  every_ticks: 2
  codec: msgpack
powerups:
  speed_boost:
    duration_seconds: 12
    factor: 2
    enabled: false
`

func TestLoad(t *testing.T) {
	cfg, settings, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, 800.0, cfg.Field.Width)
	require.Equal(t, "msgpack", cfg.Broadcast.Codec)
	// untouched sections keep their defaults
	require.Equal(t, Default().Server.ListenAddr, cfg.Server.ListenAddr)
	require.Equal(t, 8.0, cfg.PowerUps.Growth.DurationSeconds)

	require.Equal(t, 12.0, settings.Float("powerups.speed_boost.duration_seconds", 0))
	require.Equal(t, 2.0, settings.Float("powerups.speed_boost.factor", 0))
	require.False(t, settings.Bool("powerups.speed_boost.enabled", true))
	require.True(t, settings.Bool("powerups.growth.enabled", false))
	require.Equal(t, 2.0, settings.Float("broadcast.every_ticks", 0))
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, _, err := Load(strings.NewReader("broadcast:\n  codec: xml\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, _, err = Load(strings.NewReader("field:\n  width: -1\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSettingsDefaults(t *testing.T) {
	s := NewSettings(map[string]any{"a.b": 3, "flag": true})
	require.Equal(t, 3.0, s.Float("a.b", 0))
	require.Equal(t, 7.5, s.Float("missing", 7.5))
	require.True(t, s.Bool("flag", false))
	require.False(t, s.Bool("a.b", false))

	var nilSettings *Settings
	require.Equal(t, 1.0, nilSettings.Float("x", 1))
	require.True(t, nilSettings.Bool("x", true))
}
