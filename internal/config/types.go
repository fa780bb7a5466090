package config

// Config is the root configuration for vyrtuous.
type Config struct {
	Owner         string         `yaml:"owner,omitempty"`         // authorized principal id
	CommandPrefix string         `yaml:"commandPrefix,omitempty"` // messages starting with this are ignored
	Model         ModelConfig    `yaml:"model,omitempty"`
	Agent         AgentConfig    `yaml:"agent,omitempty"`
	Feedback      FeedbackConfig `yaml:"feedback,omitempty"`
	Tail          TailConfig     `yaml:"tail,omitempty"`
	Tools         ToolsConfig    `yaml:"tools,omitempty"`
	Channels      ChannelsConfig `yaml:"channels,omitempty"`
	Gateway       GatewayConfig  `yaml:"gateway,omitempty"`
	Events        EventsConfig   `yaml:"events,omitempty"`
	Store         StoreConfig    `yaml:"store,omitempty"`
	Logging       LoggingConfig  `yaml:"logging,omitempty"`
}

// ModelConfig selects the model provider and how it is called.
type ModelConfig struct {
	Provider    string   `yaml:"provider,omitempty"`    // "gemini" | "ollama"
	Name        string   `yaml:"name,omitempty"`        // model id sent to the provider
	RequestType string   `yaml:"requestType,omitempty"` // provider API flavor, e.g. "generateContent", "chat"
	Stream      bool     `yaml:"stream,omitempty"`
	APIKey      string   `yaml:"apiKey,omitempty"`
	Fallbacks   []string `yaml:"fallbacks,omitempty"` // provider names tried on retryable errors

	// Endpoints overrides provider -> requestType -> URL. Keys may also be
	// "surface/requestType" to target one chat surface.
	Endpoints map[string]map[string]string `yaml:"endpoints,omitempty"`
	// Instructions overrides provider -> surface -> system text. "*" matches
	// any surface.
	Instructions map[string]map[string]string `yaml:"instructions,omitempty"`
	// Providers holds per-provider connection details.
	Providers map[string]ProviderEntry `yaml:"providers,omitempty"`
}

// ProviderEntry configures one model provider.
type ProviderEntry struct {
	BaseURL string `yaml:"baseUrl,omitempty"`
	APIKey  string `yaml:"apiKey,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// AgentConfig tunes the agent control loop.
type AgentConfig struct {
	MaxRetries  int      `yaml:"maxRetries,omitempty"`
	Timeout     Duration `yaml:"timeout,omitempty"`
	MaxTurns    int      `yaml:"maxTurns,omitempty"`
	ToolWorkers int      `yaml:"toolWorkers,omitempty"`
	Window      int      `yaml:"window,omitempty"`
	AckText     string   `yaml:"ackText,omitempty"`
}

// FeedbackConfig locates the correction-pairs log.
type FeedbackConfig struct {
	Path string `yaml:"path,omitempty"`
}

// TailConfig configures the log-tail trigger.
type TailConfig struct {
	Enabled     bool        `yaml:"enabled,omitempty"`
	Path        string      `yaml:"path,omitempty"`
	Interval    Duration    `yaml:"interval,omitempty"`
	ActiveHours ActiveHours `yaml:"activeHours,omitempty"`
	Channel     string      `yaml:"channel,omitempty"`     // destination channel id
	ChatID      string      `yaml:"chatId,omitempty"`      // destination conversation
	CursorStore string      `yaml:"cursorStore,omitempty"` // "sqlite" | "memory"
}

// ActiveHours is a local time-of-day window [Start, End). Start == End
// means always active; Start > End wraps past midnight.
type ActiveHours struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// ToolsConfig configures built-in tools.
type ToolsConfig struct {
	Search SearchConfig `yaml:"search,omitempty"`
}

// SearchConfig configures the web search tool.
type SearchConfig struct {
	APIKey   string `yaml:"apiKey,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Count    int    `yaml:"count,omitempty"`
}

// ChannelsConfig defines chat surfaces.
type ChannelsConfig struct {
	IRC *IRCConfig `yaml:"irc,omitempty"`
}

// IRCConfig defines IRC channel settings.
type IRCConfig struct {
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port,omitempty"`
	Nick     string   `yaml:"nick"`
	Password string   `yaml:"password,omitempty"`
	Channels []string `yaml:"channels"`
	UseTLS   bool     `yaml:"useTLS,omitempty"`
	SASL     bool     `yaml:"sasl,omitempty"`
}

// GatewayConfig controls the local HTTP/WebSocket console.
type GatewayConfig struct {
	Enabled        bool        `yaml:"enabled,omitempty"`
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
}

// GatewayAuth configures console authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// EventsConfig configures event publishing.
type EventsConfig struct {
	MQTT *MQTTConfig `yaml:"mqtt,omitempty"`
}

// MQTTConfig describes the broker events are published to.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // mqtt://host:1883 or mqtts://host:8883
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topicPrefix,omitempty"`
	ClientID    string `yaml:"clientId,omitempty"`
}

// StoreConfig locates the embedded database.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleLevel string `yaml:"consoleLevel,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}
