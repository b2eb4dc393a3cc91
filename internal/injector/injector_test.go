package injector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitializeFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reefrush.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: error
field:
  width: 640
  height: 480
client:
  autopilot_every_ticks: 10
`), 0o600))

	s, err := InitializeServer(ConfigPath(path))
	require.NoError(t, err)
	require.Equal(t, 640.0, s.Field().Width())

	c, err := InitializeClient(ConfigPath(path))
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestInitializeRejectsBadConfig(t *testing.T) {
	_, err := InitializeServer(ConfigPath(filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
}
