package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/soyeahso/vyrtuous/internal/config"
	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/logging"
	"github.com/soyeahso/vyrtuous/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func testPaths(t *testing.T) config.Paths {
	t.Helper()
	dir := t.TempDir()
	return config.Paths{
		Base:        dir,
		Config:      filepath.Join(dir, "config.yaml"),
		Data:        dir,
		Logs:        dir,
		Corrections: filepath.Join(dir, "corrections.jsonl"),
		Database:    ":memory:",
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"FALSE", false},
		{"42", 42},
		{"-7", -7},
		{"1.5", 1.5},
		{"007", 7.0},
		{"hello", "hello"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}

func TestPrintValue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printValue(&buf, "plain"))
	assert.Equal(t, "plain\n", buf.String())

	buf.Reset()
	require.NoError(t, printValue(&buf, map[string]any{"port": 18790}))
	assert.Equal(t, "port: 18790\n", buf.String())

	buf.Reset()
	require.NoError(t, printValue(&buf, []any{"a", "b"}))
	assert.Equal(t, "- a\n- b\n", buf.String())

	buf.Reset()
	require.NoError(t, printValue(&buf, 3))
	assert.Equal(t, "3\n", buf.String())
}

func TestRedact(t *testing.T) {
	cfg := config.Defaults()
	cfg.Model.APIKey = "gem-key"
	cfg.Model.Providers = map[string]config.ProviderEntry{"gemini": {APIKey: "p-key", Model: "m"}}
	cfg.Gateway.Auth.Token = "tok"
	cfg.Channels.IRC = &config.IRCConfig{Server: "irc.example.com", Nick: "v", Password: "secret"}
	cfg.Events.MQTT = &config.MQTTConfig{Broker: "mqtt://localhost:1883", Password: "mq"}

	out := redact(cfg)

	assert.Equal(t, redacted, out.Model.APIKey)
	assert.Equal(t, redacted, out.Model.Providers["gemini"].APIKey)
	assert.Equal(t, "m", out.Model.Providers["gemini"].Model)
	assert.Equal(t, redacted, out.Gateway.Auth.Token)
	assert.Empty(t, out.Gateway.Auth.Password)
	assert.Equal(t, redacted, out.Channels.IRC.Password)
	assert.Equal(t, "irc.example.com", out.Channels.IRC.Server)
	assert.Equal(t, redacted, out.Events.MQTT.Password)

	// The input is left untouched.
	assert.Equal(t, "secret", cfg.Channels.IRC.Password)
	assert.Equal(t, "p-key", cfg.Model.Providers["gemini"].APIKey)
	assert.Equal(t, "mq", cfg.Events.MQTT.Password)
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("VYRTUOUS_CLI_TEST_A=from-file\nVYRTUOUS_CLI_TEST_B=from-file\n"), 0o600))

	t.Setenv("VYRTUOUS_CLI_TEST_B", "from-env")
	t.Cleanup(func() { os.Unsetenv("VYRTUOUS_CLI_TEST_A") })

	require.NoError(t, loadEnvFiles("", filepath.Join(dir, "missing.env"), envFile))
	assert.Equal(t, "from-file", os.Getenv("VYRTUOUS_CLI_TEST_A"))
	assert.Equal(t, "from-env", os.Getenv("VYRTUOUS_CLI_TEST_B"))
}

func TestPrintChannel(t *testing.T) {
	var buf bytes.Buffer
	ch := newPrintChannel(&buf)
	ctx := context.Background()

	id1, err := ch.Send(ctx, domain.OutboundMessage{ChannelID: "cli", To: "cli", Body: "first"})
	require.NoError(t, err)
	id2, err := ch.Send(ctx, domain.OutboundMessage{ChannelID: "cli", To: "cli", Body: "second"})
	require.NoError(t, err)
	require.NoError(t, ch.React(ctx, "cli", id1, domain.ReactionApprove))

	assert.Equal(t, "cli-1", id1)
	assert.Equal(t, "cli-2", id2)
	assert.Equal(t, "[cli-1] first\n[cli-2] second\n[cli-1] +"+domain.ReactionApprove+"\n", buf.String())
}

func newToolsTestApp(t *testing.T, out *bytes.Buffer) *app {
	t.Helper()
	a, err := newApp(config.Defaults(), testPaths(t), silentLog(), appOptions{
		noModel: true,
		extra:   []domain.Channel{newPrintChannel(out)},
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestToolsRegistered(t *testing.T) {
	var out bytes.Buffer
	a := newToolsTestApp(t, &out)
	assert.Equal(t, []string{"correct_fallacy", "list_channels", "send_message"}, a.tools.Names())
	assert.Nil(t, a.driver)
	assert.Nil(t, a.router)
	assert.Nil(t, a.events)
}

func TestSearchToolNeedsKey(t *testing.T) {
	cfg := config.Defaults()
	cfg.Tools.Search.APIKey = "brave-key"
	a, err := newApp(cfg, testPaths(t), silentLog(), appOptions{noModel: true})
	require.NoError(t, err)
	defer a.Close()
	assert.Contains(t, a.tools.Names(), "search_web")
}

func TestCallToolSendMessage(t *testing.T) {
	var out bytes.Buffer
	a := newToolsTestApp(t, &out)

	res, err := callTool(context.Background(), a.rpc, "cli", domain.PendingToolCall{
		Name:      "send_message",
		Arguments: json.RawMessage(`{"channelId":"cli","chatId":"cli","text":"hello there"}`),
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "cli-1")
	assert.Equal(t, "[cli-1] hello there\n", out.String())
}

func TestCallToolCorrectFallacyTracksFeedback(t *testing.T) {
	var out bytes.Buffer
	a := newToolsTestApp(t, &out)

	res, err := callTool(context.Background(), a.rpc, "cli", domain.PendingToolCall{
		Name: "correct_fallacy",
		Arguments: json.RawMessage(`{"channelId":"cli","chatId":"cli","corrections":[` +
			`{"fallacy":"Everyone does it","correction":"Popularity is not evidence."}]}`),
	})
	require.NoError(t, err)
	assert.True(t, res.Success, res.Message)
	assert.Equal(t, 1, a.tracked.Len())
	assert.Contains(t, out.String(), "Popularity is not evidence.")
	assert.Contains(t, out.String(), "+"+domain.ReactionApprove)
	assert.Contains(t, out.String(), "+"+domain.ReactionReject)
}

func TestCallToolListChannels(t *testing.T) {
	var out bytes.Buffer
	a := newToolsTestApp(t, &out)

	res, err := callTool(context.Background(), a.rpc, "cli", domain.PendingToolCall{
		Name:      "list_channels",
		Arguments: json.RawMessage(`{"filter":"*"}`),
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "cli")
}

func TestCallToolUnknown(t *testing.T) {
	var out bytes.Buffer
	a := newToolsTestApp(t, &out)

	res, err := callTool(context.Background(), a.rpc, "cli", domain.PendingToolCall{
		Name:      "no_such_tool",
		Arguments: json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "no_such_tool")
}

func TestNewAppStartsWithEmptyWindow(t *testing.T) {
	p := testPaths(t)
	p.Database = filepath.Join(p.Data, "vyrtuous.db")
	cfg := config.Defaults()

	first, err := newApp(cfg, p, silentLog(), appOptions{noModel: true})
	require.NoError(t, err)
	first.conversations.Append("irc:#a", domain.NewDirective("is this a fallacy?"))
	first.conversations.SetContinuation("irc:#a", "resp-1")
	require.NoError(t, store.NewSQLiteCursorStore(first.db).Save("/var/log/chat.log", 9))
	require.NoError(t, first.Close())

	second, err := newApp(cfg, p, silentLog(), appOptions{noModel: true})
	require.NoError(t, err)
	defer second.Close()

	assert.Empty(t, second.conversations.Snapshot("irc:#a"))
	assert.Empty(t, second.conversations.Continuation("irc:#a"))
	assert.Empty(t, second.conversations.Keys())

	off, err := store.NewSQLiteCursorStore(second.db).Load("/var/log/chat.log")
	require.NoError(t, err)
	assert.Equal(t, int64(9), off, "tail cursors survive a restart")
}

func TestNewAppWithoutProvider(t *testing.T) {
	t.Setenv("VYRTUOUS_GEMINI_API_KEY", "")
	cfg := config.Defaults()
	cfg.Model.Provider = "gemini"
	cfg.Model.APIKey = ""

	_, err := newApp(cfg, testPaths(t), silentLog(), appOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no model provider")
}

func TestNewAppWiresTail(t *testing.T) {
	cfg := config.Defaults()
	cfg.Owner = "owner"
	cfg.Model.Provider = "ollama"
	cfg.Tail.Enabled = true
	cfg.Tail.Path = filepath.Join(t.TempDir(), "chat.log")
	cfg.Tail.Channel = "cli"
	cfg.Tail.ChatID = "cli"

	a, err := newApp(cfg, testPaths(t), silentLog(), appOptions{})
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.driver)
	assert.NotNil(t, a.router)
	assert.NotNil(t, a.trigger)
	assert.Nil(t, a.console)
	assert.Equal(t, []string{"tail"}, a.plugins.List())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, a.plugins.StartAll(ctx))
	cancel()
	a.plugins.StopAll(context.Background())
}

func TestNewAppRegistersPublisher(t *testing.T) {
	cfg := config.Defaults()
	cfg.Model.Provider = "ollama"
	cfg.Events.MQTT = &config.MQTTConfig{Broker: "mqtt://127.0.0.1:1883", TopicPrefix: "vyrtuous"}

	a, err := newApp(cfg, testPaths(t), silentLog(), appOptions{})
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.events)
	assert.Equal(t, []string{"mqtt"}, a.plugins.List())
}

func TestRunWithNothingToDo(t *testing.T) {
	cfg := config.Defaults()
	cfg.Model.Provider = "ollama"

	a, err := newApp(cfg, testPaths(t), silentLog(), appOptions{surfaces: true})
	require.NoError(t, err)
	defer a.Close()

	err = a.run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to do")
}

func TestTailOnceCommand(t *testing.T) {
	p := testPaths(t)
	logPath := filepath.Join(p.Base, "chat.log")
	require.NoError(t, os.WriteFile(logPath, []byte("alice: you're wrong because you're young\n"), 0o600))

	paths = p
	cfgFile, logLevel = "", ""
	cmd := newTailOnceCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--path", logPath})
	log = silentLog()

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "you're wrong because you're young")
	assert.Contains(t, errOut.String(), "committed=false")
}
