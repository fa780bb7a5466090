package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/soyeahso/vyrtuous/internal/config"
	"github.com/soyeahso/vyrtuous/internal/gateway"
	"github.com/soyeahso/vyrtuous/internal/llm"
	"github.com/soyeahso/vyrtuous/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show vyrtuous status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "vyrtuous %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Fprintf(out, "Config:   %s\n", paths.Config)
			fmt.Fprintf(out, "Data:     %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:     %s\n", paths.Logs)
			fmt.Fprintln(out)

			cfg, err := loadConfig()
			if err != nil {
				fmt.Fprintf(out, "Config:   error loading: %v\n", err)
				return nil
			}
			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:   not found (using defaults)")
			}

			printSummary(out, cfg)

			if cfg.Gateway.Enabled {
				fmt.Fprintln(out)
				health, err := probeConsole(cmd.Context(), cfg.Gateway)
				if err != nil {
					fmt.Fprintf(out, "Console:  not reachable (%v)\n", err)
				} else {
					fmt.Fprintf(out, "Console:  %s version=%s clients=%d uptime=%s\n",
						health.Status, health.Version, health.Clients,
						(time.Duration(health.UptimeMs) * time.Millisecond).Round(time.Second))
				}
			}

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}

func printSummary(out io.Writer, cfg config.Config) {
	owner := cfg.Owner
	if owner == "" {
		owner = "(unset, every directive is ignored)"
	}
	fmt.Fprintf(out, "Owner:    %s\n", owner)

	registry := llm.NewRegistryFromConfig(cfg.Model, log)
	providers := registry.List()
	if len(providers) > 0 {
		fmt.Fprintf(out, "Model:    provider=%s name=%s available=%s\n",
			cfg.Model.Provider, cfg.Model.Name, strings.Join(providers, ","))
	} else {
		fmt.Fprintf(out, "Model:    provider=%s (not available)\n", cfg.Model.Provider)
	}
	fmt.Fprintf(out, "Agent:    retries=%d timeout=%s turns=%d workers=%d window=%d\n",
		cfg.Agent.MaxRetries, cfg.Agent.Timeout.Duration, cfg.Agent.MaxTurns, cfg.Agent.ToolWorkers, cfg.Agent.Window)

	if irc := cfg.Channels.IRC; irc != nil {
		fmt.Fprintf(out, "IRC:      server=%s nick=%s channels=%s tls=%v\n",
			irc.Server, irc.Nick, strings.Join(irc.Channels, ","), irc.UseTLS)
	} else {
		fmt.Fprintln(out, "IRC:      (not configured)")
	}

	if cfg.Gateway.Enabled {
		fmt.Fprintf(out, "Console:  port=%d bind=%s auth=%s\n", cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Auth.Mode)
	} else {
		fmt.Fprintln(out, "Console:  (disabled)")
	}

	if cfg.Tail.Enabled {
		fmt.Fprintf(out, "Tail:     path=%s every=%s hours=%02d-%02d to=%s/%s\n",
			cfg.Tail.Path, cfg.Tail.Interval.Duration, cfg.Tail.ActiveHours.Start, cfg.Tail.ActiveHours.End,
			cfg.Tail.Channel, cfg.Tail.ChatID)
	} else {
		fmt.Fprintln(out, "Tail:     (disabled)")
	}

	if cfg.Events.MQTT != nil {
		fmt.Fprintf(out, "Events:   broker=%s prefix=%s\n", cfg.Events.MQTT.Broker, cfg.Events.MQTT.TopicPrefix)
	}
	fmt.Fprintf(out, "Feedback: %s\n", paths.FeedbackPath(cfg))
}

// probeConsole asks a running console for its health.
func probeConsole(ctx context.Context, cfg config.GatewayConfig) (gateway.HealthResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	host := "127.0.0.1"
	if cfg.Bind == "custom" && cfg.CustomBindHost != "" {
		host = cfg.CustomBindHost
	}
	url := "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Port)) + "/health"

	var health gateway.HealthResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return health, err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return health, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return health, fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return health, fmt.Errorf("decoding health: %w", err)
	}
	return health, nil
}
