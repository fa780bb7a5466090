package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Duration is a time.Duration that reads "90s"-style strings or a plain
// number of seconds from YAML.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if secs, err := strconv.Atoi(node.Value); err == nil {
		d.Duration = time.Duration(secs) * time.Second
		return nil
	}
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return &ConfigError{Message: fmt.Sprintf("invalid duration %q", node.Value)}
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Defaults for the agent loop.
const (
	DefaultMaxRetries  = 2
	DefaultTimeout     = 3600 * time.Second
	DefaultMaxTurns    = 1
	DefaultToolWorkers = 4
	DefaultWindow      = 200
	DefaultAckText     = "Thinking..."
	DefaultTailEvery   = 60 * time.Second
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Model: ModelConfig{
			Provider:    "gemini",
			Name:        "gemini-2.5-flash",
			RequestType: "generateContent",
		},
		Agent: AgentConfig{
			MaxRetries:  DefaultMaxRetries,
			Timeout:     Duration{DefaultTimeout},
			MaxTurns:    DefaultMaxTurns,
			ToolWorkers: DefaultToolWorkers,
			Window:      DefaultWindow,
			AckText:     DefaultAckText,
		},
		Tail: TailConfig{
			Interval:    Duration{DefaultTailEvery},
			ActiveHours: ActiveHours{Start: 8, End: 22},
			CursorStore: "sqlite",
		},
		Gateway: GatewayConfig{
			Port: 18790,
			Bind: "loopback",
			Auth: GatewayAuth{Mode: "token"},
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleLevel: "info",
			ConsoleStyle: "pretty",
		},
	}
}
