package easybus

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
serial:
  address: /dev/ttyUSB0
  timeout: 1500ms
encoding: extended
poll_interval: 2s
channels:
  - tag: room
    alias: GMH3750
    address: 1
  - tag: tank
    address: 2
    encoding: legacy
    frequency: 10000
gateway:
  enabled: true
  listen: ":1502"
log:
  level: debug
`

func TestParseConfig(t *testing.T) {
	config, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	require.Equal(t, "/dev/ttyUSB0", config.Serial.Address)
	require.Equal(t, 4800, config.Serial.BaudRate)
	require.Equal(t, "N", config.Serial.Parity)
	require.Equal(t, 1500*time.Millisecond, config.Serial.Timeout)
	require.Equal(t, 2*time.Second, config.PollInterval)
	require.True(t, config.Gateway.Enabled)
	require.Equal(t, ":1502", config.Gateway.Listen)

	channels, err := config.DeviceChannels()
	require.NoError(t, err)
	require.Equal(t, []DeviceChannel{
		{Tag: "room", Alias: "GMH3750", Address: 1, Encoding: EncodingExtended, Frequency: DefaultFrequency},
		{Tag: "tank", Address: 2, Encoding: EncodingLegacy, Frequency: 10000},
	}, channels)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no serial address", "encoding: extended"},
		{"bad encoding", "serial: {address: COM4}\nencoding: bcd"},
		{"bad parity", "serial: {address: COM4, parity: Q}"},
		{"bad log level", "serial: {address: COM4}\nlog: {level: loud}"},
		{"address range", "serial: {address: COM4}\nchannels: [{tag: a, address: 300}]"},
		{"duplicate tag", "serial: {address: COM4}\nchannels: [{tag: a, address: 1}, {tag: a, address: 2}]"},
		{"not yaml", "serial: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoadConfig_ChannelFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "channels.csv"),
		[]byte("tag,alias,address,encoding,frequency\nhall,,5,legacy,\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "easybusd.yaml"),
		[]byte("serial: {address: COM4}\nchannel_file: channels.csv\nchannels: [{tag: room, address: 1}]\n"), 0o644))

	config, err := LoadConfig(filepath.Join(dir, "easybusd.yaml"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "channels.csv"), config.ChannelFile)

	channels, err := config.LoadChannels()
	require.NoError(t, err)
	require.Len(t, channels, 2)
	require.Equal(t, "room", channels[0].Tag)
	require.Equal(t, "hall", channels[1].Tag)
	require.Equal(t, uint8(5), channels[1].Address)
	require.Equal(t, EncodingLegacy, channels[1].Encoding)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
