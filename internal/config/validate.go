package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Model
	validProviders := []string{"gemini", "ollama"}
	if cfg.Model.Provider != "" && !slices.Contains(validProviders, cfg.Model.Provider) {
		add("model.provider", "must be one of %v, got %q", validProviders, cfg.Model.Provider)
	}
	for _, fb := range cfg.Model.Fallbacks {
		if !slices.Contains(validProviders, fb) {
			add("model.fallbacks", "unknown provider %q", fb)
		}
	}

	// Agent
	if cfg.Agent.MaxRetries < 0 {
		add("agent.maxRetries", "must be >= 0, got %d", cfg.Agent.MaxRetries)
	}
	if cfg.Agent.Timeout.Duration < 0 {
		add("agent.timeout", "must be positive, got %s", cfg.Agent.Timeout)
	}
	if cfg.Agent.MaxTurns < 0 {
		add("agent.maxTurns", "must be >= 0, got %d", cfg.Agent.MaxTurns)
	}

	// Tail
	if cfg.Tail.Enabled && cfg.Tail.Path == "" {
		add("tail.path", "required when tail is enabled")
	}
	if h := cfg.Tail.ActiveHours; h.Start < 0 || h.Start > 23 || h.End < 0 || h.End > 24 {
		add("tail.activeHours", "hours must be within 0-24, got %d-%d", h.Start, h.End)
	}
	validCursorStores := []string{"sqlite", "memory"}
	if cfg.Tail.CursorStore != "" && !slices.Contains(validCursorStores, cfg.Tail.CursorStore) {
		add("tail.cursorStore", "must be one of %v, got %q", validCursorStores, cfg.Tail.CursorStore)
	}

	// Gateway
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is custom")
	}
	validAuthModes := []string{"token", "password"}
	if cfg.Gateway.Auth.Mode != "" && !slices.Contains(validAuthModes, cfg.Gateway.Auth.Mode) {
		add("gateway.auth.mode", "must be one of %v, got %q", validAuthModes, cfg.Gateway.Auth.Mode)
	}

	// Logging
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	if cfg.Logging.ConsoleLevel != "" && !slices.Contains(validLogLevels, cfg.Logging.ConsoleLevel) {
		add("logging.consoleLevel", "must be one of %v, got %q", validLogLevels, cfg.Logging.ConsoleLevel)
	}
	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	// IRC validation (only if configured)
	if irc := cfg.Channels.IRC; irc != nil {
		if irc.Server == "" {
			add("channels.irc.server", "server is required")
		}
		if irc.Nick == "" {
			add("channels.irc.nick", "nick is required")
		}
		if irc.Port < 0 || irc.Port > 65535 {
			add("channels.irc.port", "port must be 0-65535, got %d", irc.Port)
		}
		if irc.SASL && irc.Password == "" {
			add("channels.irc.sasl", "SASL requires a password to be set")
		}
	}

	// MQTT validation (only if configured)
	if m := cfg.Events.MQTT; m != nil && m.Broker == "" {
		add("events.mqtt.broker", "broker is required")
	}

	return issues
}
