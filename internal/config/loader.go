package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so passwords and tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Owner = expandEnvVars(cfg.Owner)
	cfg.Model.APIKey = expandEnvVars(cfg.Model.APIKey)
	cfg.Tools.Search.APIKey = expandEnvVars(cfg.Tools.Search.APIKey)
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.Gateway.Auth.Password = expandEnvVars(cfg.Gateway.Auth.Password)
	if cfg.Channels.IRC != nil {
		cfg.Channels.IRC.Password = expandEnvVars(cfg.Channels.IRC.Password)
	}
	if cfg.Events.MQTT != nil {
		cfg.Events.MQTT.Password = expandEnvVars(cfg.Events.MQTT.Password)
	}
	for name, p := range cfg.Model.Providers {
		p.APIKey = expandEnvVars(p.APIKey)
		cfg.Model.Providers[name] = p
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Agent.MaxRetries < 0 {
		cfg.Agent.MaxRetries = 0
	}
	if cfg.Agent.Timeout.Duration <= 0 {
		cfg.Agent.Timeout.Duration = DefaultTimeout
	}
	if cfg.Agent.MaxTurns <= 0 {
		cfg.Agent.MaxTurns = DefaultMaxTurns
	}
	if cfg.Agent.ToolWorkers <= 0 {
		cfg.Agent.ToolWorkers = DefaultToolWorkers
	}
	if cfg.Agent.Window <= 0 {
		cfg.Agent.Window = DefaultWindow
	}
	if cfg.Agent.AckText == "" {
		cfg.Agent.AckText = DefaultAckText
	}
	if cfg.Tail.Interval.Duration <= 0 {
		cfg.Tail.Interval.Duration = DefaultTailEvery
	}
	if cfg.Tail.CursorStore == "" {
		cfg.Tail.CursorStore = "sqlite"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18790
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}
	if cfg.Gateway.Auth.Mode == "" {
		cfg.Gateway.Auth.Mode = "token"
	}
	if cfg.Events.MQTT != nil && cfg.Events.MQTT.TopicPrefix == "" {
		cfg.Events.MQTT.TopicPrefix = "vyrtuous"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleLevel == "" {
		cfg.Logging.ConsoleLevel = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
}

// applyEnvOverrides reads VYRTUOUS_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VYRTUOUS_OWNER_ID"); v != "" {
		cfg.Owner = v
	}
	if v := os.Getenv("VYRTUOUS_COMMAND_PREFIX"); v != "" {
		cfg.CommandPrefix = v
	}
	if v := os.Getenv("VYRTUOUS_PROVIDER"); v != "" {
		cfg.Model.Provider = v
	}
	if v := os.Getenv("VYRTUOUS_MODEL"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("VYRTUOUS_REQUEST_TYPE"); v != "" {
		cfg.Model.RequestType = v
	}
	if v := os.Getenv("VYRTUOUS_STREAM"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Model.Stream = b
		}
	}
	if v := os.Getenv("VYRTUOUS_GEMINI_API_KEY"); v != "" && cfg.Model.APIKey == "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("VYRTUOUS_SEARCH_API_KEY"); v != "" {
		cfg.Tools.Search.APIKey = v
	}
	if v := os.Getenv("VYRTUOUS_TAIL_PATH"); v != "" {
		cfg.Tail.Path = v
		cfg.Tail.Enabled = true
	}
	if v := os.Getenv("VYRTUOUS_TAIL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Tail.Interval.Duration = d
		}
	}
	if v := os.Getenv("VYRTUOUS_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("VYRTUOUS_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("VYRTUOUS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
