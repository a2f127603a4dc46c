package easybus

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration.
type Config struct {
	Serial       SerialConfig    `yaml:"serial"`
	Encoding     string          `yaml:"encoding"`
	PollInterval time.Duration   `yaml:"poll_interval"`
	Channels     []ChannelConfig `yaml:"channels"`
	ChannelFile  string          `yaml:"channel_file"` // CSV channel list, relative to the config file
	Gateway      GatewayConfig   `yaml:"gateway"`
	Log          LogConfig       `yaml:"log"`
}

// ChannelConfig is one entry of the channel list.
type ChannelConfig struct {
	Tag       string `yaml:"tag"`
	Alias     string `yaml:"alias"`
	Address   int    `yaml:"address"`
	Encoding  string `yaml:"encoding"` // Overrides Config.Encoding
	Frequency uint64 `yaml:"frequency"`
}

// GatewayConfig controls the Modbus TCP gateway.
type GatewayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Serial:       DefaultSerialConfig(""),
		Encoding:     EncodingExtended.String(),
		PollInterval: 5 * time.Second,
		Gateway: GatewayConfig{
			Listen: ":502",
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	config, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	if config.ChannelFile != "" && !filepath.IsAbs(config.ChannelFile) {
		config.ChannelFile = filepath.Join(filepath.Dir(path), config.ChannelFile)
	}
	return config, nil
}

// ParseConfig parses YAML configuration data on top of the defaults.
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := c.Serial.Validate(); err != nil {
		return fmt.Errorf("serial: %w", err)
	}
	if _, err := ParseValueEncoding(c.Encoding); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.Gateway.Enabled && c.Gateway.Listen == "" {
		return fmt.Errorf("gateway: listen address is required")
	}
	_, err := c.DeviceChannels()
	return err
}

// DeviceChannels converts the inline channel list.
func (c *Config) DeviceChannels() ([]DeviceChannel, error) {
	defaultEncoding, err := ParseValueEncoding(c.Encoding)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	channels := make([]DeviceChannel, 0, len(c.Channels))
	for i, cc := range c.Channels {
		if cc.Tag == "" {
			return nil, fmt.Errorf("channel %d: tag is required", i)
		}
		if seen[cc.Tag] {
			return nil, fmt.Errorf("duplicate tag: %s", cc.Tag)
		}
		seen[cc.Tag] = true
		if cc.Address < 0 || cc.Address > 255 {
			return nil, fmt.Errorf("channel %s: address %d out of range 0-255", cc.Tag, cc.Address)
		}
		encoding := defaultEncoding
		if cc.Encoding != "" {
			if encoding, err = ParseValueEncoding(cc.Encoding); err != nil {
				return nil, fmt.Errorf("channel %s: %w", cc.Tag, err)
			}
		}
		frequency := cc.Frequency
		if frequency == 0 {
			frequency = DefaultFrequency
		}
		channels = append(channels, DeviceChannel{
			Tag:       cc.Tag,
			Alias:     cc.Alias,
			Address:   uint8(cc.Address),
			Encoding:  encoding,
			Frequency: frequency,
		})
	}
	return channels, nil
}

// LoadChannels returns the inline channels followed by those of the
// channel file, if any.
func (c *Config) LoadChannels() ([]DeviceChannel, error) {
	channels, err := c.DeviceChannels()
	if err != nil {
		return nil, err
	}
	if c.ChannelFile == "" {
		return channels, nil
	}
	f, err := os.Open(c.ChannelFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open channel file: %w", err)
	}
	defer f.Close()
	fromFile, err := NewCSVChannelParser().ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.ChannelFile, err)
	}
	seen := make(map[string]bool, len(channels))
	for _, ch := range channels {
		seen[ch.Tag] = true
	}
	for _, ch := range fromFile {
		if seen[ch.Tag] {
			return nil, fmt.Errorf("duplicate tag: %s", ch.Tag)
		}
		channels = append(channels, ch)
	}
	return channels, nil
}
