package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 54*time.Second, cfg.WS.PingPeriod)
	assert.Equal(t, 32, cfg.WS.SendBuffer)
	assert.Zero(t, cfg.Calls.RingTimeout, "ring timeout is off by default")
	assert.Equal(t, PresenceMemory, cfg.Presence.Backend)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers[0].URLs)
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	path := writeConfig(t, `
mode: debug
port: 9000
calls:
  ring_timeout: 30s
ice_servers:
  - urls: ["turn:turn.example.org:3478"]
    username: u
    credential: p
`)
	t.Setenv("PEERCALL_WS_SEND_BUFFER", "128")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 8080, "")
	require.NoError(t, flags.Parse([]string{"--port", "9100"}))

	cfg, err := LoadFile(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9100, cfg.Port, "flag beats file")
	assert.Equal(t, 128, cfg.WS.SendBuffer, "env beats default")
	assert.Equal(t, 30*time.Second, cfg.Calls.RingTimeout)

	rtc := cfg.WebRTC()
	require.Len(t, rtc.ICEServers, 1)
	assert.Equal(t, "u", rtc.ICEServers[0].Username)
	assert.Equal(t, "p", rtc.ICEServers[0].Credential)
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, `
presence:
  backend: etcd
ws:
  send_buffer: 0
`)
	_, err := LoadFile(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "presence.backend")
	assert.Contains(t, err.Error(), "ws.send_buffer")
}

func TestShippedConfigsEnableRingTimeout(t *testing.T) {
	for name, want := range map[string]time.Duration{
		"config.dev.yaml":  45 * time.Second,
		"config.prod.yaml": 60 * time.Second,
	} {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadFile(filepath.Join("..", "..", "config", name), nil)
			require.NoError(t, err)
			assert.Equal(t, want, cfg.Calls.RingTimeout)
		})
	}
}
