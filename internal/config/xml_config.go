// Package config provides XML (or YAML) configuration for the simulation server.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"PumpSimulation" yaml:"-"`

	// Server configuration
	Server ServerConfig `xml:"Server" yaml:"server"`

	// Simulation and playback configuration
	Simulation SimulationConfig `xml:"Simulation" yaml:"simulation"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced" yaml:"advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port" yaml:"port"`
	BindAddress  string `xml:"BindAddress" yaml:"bindAddress"`
	EnableCORS   bool   `xml:"EnableCORS" yaml:"enableCors"`
	AllowOrigins string `xml:"AllowOrigins" yaml:"allowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds" yaml:"readTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds" yaml:"writeTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds" yaml:"idleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit" yaml:"bodyLimit"`
}

// SimulationConfig contains series generation and playback settings
type SimulationConfig struct {
	BaseTickMs   int     `xml:"BaseTickMilliseconds" yaml:"baseTickMilliseconds"`
	DefaultSpeed float64 `xml:"DefaultSpeed" yaml:"defaultSpeed"`
	SpeedOptions string  `xml:"SpeedOptions" yaml:"speedOptions"`
	// Seed makes the generated series reproducible. Zero means unseeded.
	Seed int64 `xml:"Seed" yaml:"seed"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel                string `xml:"LogLevel" yaml:"logLevel"`
	EnableRequestLogging    bool   `xml:"EnableRequestLogging" yaml:"enableRequestLogging"`
	EnableMetrics           bool   `xml:"EnableMetrics" yaml:"enableMetrics"`
	DuckDBThreads           int    `xml:"DuckDBThreads" yaml:"duckdbThreads"`
	DuckDBMemoryLimit       string `xml:"DuckDBMemoryLimit" yaml:"duckdbMemoryLimit"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB" yaml:"websocketMaxMessageSizeKB"`
	StreamHeartbeatSeconds  int    `xml:"StreamHeartbeatSeconds" yaml:"streamHeartbeatSeconds"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "1M",
		},
		Simulation: SimulationConfig{
			BaseTickMs:   100,
			DefaultSpeed: 0.5,
			SpeedOptions: "0.05,0.1,0.5,1,2,4",
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			EnableRequestLogging:    true,
			EnableMetrics:           true,
			DuckDBThreads:           1,
			DuckDBMemoryLimit:       "256MB",
			WebSocketMaxMessageSize: 64,
			StreamHeartbeatSeconds:  15,
		},
	}
}

// LoadConfig loads configuration from an XML file, or a YAML file when the
// extension is .yaml or .yml. A missing file yields the defaults. Environment
// overrides are applied in both cases.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
			// Defaults only.
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := config.unmarshal(configPath, data); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *AppConfig) unmarshal(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, c)
	default:
		return xml.Unmarshal(data, c)
	}
}

// Save writes the configuration as XML, or YAML for .yaml/.yml paths.
func (c *AppConfig) Save(configPath string) error {
	var content []byte
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		out, err := yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		content = out
	default:
		out, err := c.XMLBytes()
		if err != nil {
			return err
		}
		content = out
	}

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// XMLBytes renders the configuration as an indented XML document.
func (c *AppConfig) XMLBytes() ([]byte, error) {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	header := []byte(xml.Header + "<!-- Pump Simulation Configuration -->\n")
	return append(header, output...), nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if seed := os.Getenv("PUMPSIM_SEED"); seed != "" {
		if s, err := strconv.ParseInt(seed, 10, 64); err == nil {
			c.Simulation.Seed = s
		}
	}

	if level := os.Getenv("PUMPSIM_LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// Validate rejects values the server cannot run with.
func (c *AppConfig) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Simulation.BaseTickMs <= 0 {
		return fmt.Errorf("invalid base tick %dms", c.Simulation.BaseTickMs)
	}
	if !(c.Simulation.DefaultSpeed > 0) {
		return fmt.Errorf("invalid default speed %v", c.Simulation.DefaultSpeed)
	}
	if _, err := c.GetSpeedOptions(); err != nil {
		return err
	}
	return nil
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// GetBaseTick returns the tick period at speed 1.
func (c *AppConfig) GetBaseTick() time.Duration {
	return time.Duration(c.Simulation.BaseTickMs) * time.Millisecond
}

// GetSpeedOptions parses the comma separated speed list.
func (c *AppConfig) GetSpeedOptions() ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(c.Simulation.SpeedOptions, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || !(v > 0) {
			return nil, fmt.Errorf("invalid speed option %q", part)
		}
		out = append(out, v)
	}
	return out, nil
}

// GetHeartbeat returns the stream keep-alive interval, zero when disabled.
func (c *AppConfig) GetHeartbeat() time.Duration {
	if c.Advanced.StreamHeartbeatSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Advanced.StreamHeartbeatSeconds) * time.Second
}
