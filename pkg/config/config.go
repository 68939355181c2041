package config

import (
	"fmt"
	"os"
	"time"

	"ipfocuser/pkg/broadcast"
	"ipfocuser/pkg/drivers/focuser_simulator"
	"ipfocuser/pkg/drivers/ipfocuser"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration. Values given in the YAML file replace
// the defaults; command line flags replace both.
type Config struct {
	Port      int    `yaml:"port"`
	Database  string `yaml:"database"`
	Discovery bool   `yaml:"discovery"`
	Location  string `yaml:"location"`

	Focuser   FocuserConfig        `yaml:"focuser"`
	MQTT      broadcast.MQTTConfig `yaml:"mqtt"`
	Simulator SimulatorConfig      `yaml:"simulator"`
}

// FocuserConfig holds the initial driver settings. Settings saved from a
// client take precedence once they exist.
type FocuserConfig struct {
	Name          string `yaml:"name"`
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	BacklashSteps int    `yaml:"backlash_steps"`
	Approach      string `yaml:"approach"`
}

type SimulatorConfig struct {
	Port        int           `yaml:"port"`
	MinPosition uint32        `yaml:"min_position"`
	MaxPosition uint32        `yaml:"max_position"`
	Position    uint32        `yaml:"position"`
	StepDelay   time.Duration `yaml:"step_delay"`
}

func (s SimulatorConfig) Device() focuser_simulator.Config {
	return focuser_simulator.Config{
		MinPosition: s.MinPosition,
		MaxPosition: s.MaxPosition,
		Position:    s.Position,
		StepDelay:   s.StepDelay,
	}
}

func Default() Config {
	return Config{
		Port:      8090,
		Database:  "ipfocuser.db",
		Discovery: true,
		Focuser: FocuserConfig{
			Name:          ipfocuser.DefaultName,
			Host:          ipfocuser.DefaultHost,
			Port:          ipfocuser.DefaultPort,
			BacklashSteps: ipfocuser.DefaultBacklashSteps,
			Approach:      ipfocuser.DefaultApproach,
		},
		MQTT: broadcast.MQTTConfig{
			ClientID:  "ipfocuser",
			TopicRoot: "ipfocuser",
		},
		Simulator: SimulatorConfig{
			Port:        8081,
			MaxPosition: 100000,
			Position:    50000,
			StepDelay:   50 * time.Microsecond,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

func validPort(port int) bool {
	return port > 0 && port <= 65535
}

func (c Config) Validate() error {
	if !validPort(c.Port) {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	if c.Focuser.Name == "" {
		return fmt.Errorf("focuser name cannot be empty")
	}
	if c.Focuser.Host == "" {
		return fmt.Errorf("focuser host cannot be empty")
	}
	if !validPort(c.Focuser.Port) {
		return fmt.Errorf("invalid focuser port %d", c.Focuser.Port)
	}
	if c.Focuser.BacklashSteps < 0 {
		return fmt.Errorf("backlash steps cannot be negative")
	}
	switch c.Focuser.Approach {
	case "", "CW", "CCW":
	default:
		return fmt.Errorf("invalid approach direction %q", c.Focuser.Approach)
	}

	if c.MQTT.Broker != "" && c.MQTT.TopicRoot == "" {
		return fmt.Errorf("mqtt topic root cannot be empty")
	}

	if !validPort(c.Simulator.Port) {
		return fmt.Errorf("invalid simulator port %d", c.Simulator.Port)
	}
	if err := c.Simulator.Device().Validate(); err != nil {
		return fmt.Errorf("invalid simulator: %w", err)
	}
	return nil
}
