package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issuePaths(issues []ValidationIssue) []string {
	var out []string
	for _, i := range issues {
		out = append(out, i.Path)
	}
	return out
}

func TestValidate_ValidDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"unknown provider", func(c *Config) { c.Model.Provider = "claude" }, "model.provider"},
		{"unknown fallback", func(c *Config) { c.Model.Fallbacks = []string{"gemini", "nope"} }, "model.fallbacks"},
		{"negative retries", func(c *Config) { c.Agent.MaxRetries = -1 }, "agent.maxRetries"},
		{"negative turns", func(c *Config) { c.Agent.MaxTurns = -2 }, "agent.maxTurns"},
		{"tail without path", func(c *Config) { c.Tail.Enabled = true }, "tail.path"},
		{"bad hours", func(c *Config) { c.Tail.ActiveHours = ActiveHours{Start: 25, End: 3} }, "tail.activeHours"},
		{"bad cursor store", func(c *Config) { c.Tail.CursorStore = "redis" }, "tail.cursorStore"},
		{"port too high", func(c *Config) { c.Gateway.Port = 70000 }, "gateway.port"},
		{"bad bind", func(c *Config) { c.Gateway.Bind = "tailnet" }, "gateway.bind"},
		{"custom bind without host", func(c *Config) { c.Gateway.Bind = "custom" }, "gateway.customBindHost"},
		{"bad auth mode", func(c *Config) { c.Gateway.Auth.Mode = "oauth" }, "gateway.auth.mode"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad console level", func(c *Config) { c.Logging.ConsoleLevel = "loud" }, "logging.consoleLevel"},
		{"bad console style", func(c *Config) { c.Logging.ConsoleStyle = "fancy" }, "logging.consoleStyle"},
		{"mqtt without broker", func(c *Config) { c.Events.MQTT = &MQTTConfig{} }, "events.mqtt.broker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Contains(t, issuePaths(Validate(&cfg)), tt.path)
		})
	}
}

func TestValidate_WrappedHoursAllowed(t *testing.T) {
	cfg := Defaults()
	cfg.Tail.ActiveHours = ActiveHours{Start: 22, End: 6}
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_IRC(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.IRC = &IRCConfig{Port: -1, SASL: true}

	paths := issuePaths(Validate(&cfg))
	assert.Contains(t, paths, "channels.irc.server")
	assert.Contains(t, paths, "channels.irc.nick")
	assert.Contains(t, paths, "channels.irc.port")
	assert.Contains(t, paths, "channels.irc.sasl")

	cfg.Channels.IRC = &IRCConfig{Server: "irc.libera.chat", Port: 6697, Nick: "bot", SASL: true, Password: "pw"}
	assert.Empty(t, Validate(&cfg))
}

func TestValidationIssueString(t *testing.T) {
	issue := ValidationIssue{Path: "gateway.port", Message: "bad"}
	assert.Equal(t, "gateway.port: bad", issue.String())
}

func TestValidate_MultipleIssues(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Port = -1
	cfg.Logging.Level = "nope"
	issues := Validate(&cfg)
	require.Len(t, issues, 2)
}
