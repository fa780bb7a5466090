package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/soyeahso/vyrtuous/internal/agent"
	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/routing"
	"github.com/spf13/cobra"
)

func newMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Send directives to the agent",
	}

	cmd.AddCommand(newMessageSendCmd())
	return cmd
}

func newMessageSendCmd() *cobra.Command {
	var (
		model string
		noAck bool
	)

	cmd := &cobra.Command{
		Use:   "send [directive]",
		Short: "Run one directive in-process and print what the agent delivers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			directive := strings.Join(args, " ")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if model != "" {
				cfg.Model.Name = model
			}
			if noAck {
				cfg.Agent.AckText = ""
			}
			if cfg.Owner == "" {
				cfg.Owner = cliChatID
			}
			cfg.Tail.Enabled = false

			out := newPrintChannel(cmd.OutOrStdout())
			a, err := newApp(cfg, paths, log, appOptions{extra: []domain.Channel{out}})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			msg := domain.InboundMessage{
				ID:        fmt.Sprintf("cli-%d", time.Now().UnixNano()),
				ChannelID: cliChannelID,
				From:      cfg.Owner,
				ChatID:    cliChatID,
				ChatType:  domain.ChatTypeDM,
				Body:      directive,
				Timestamp: time.Now(),
				Addressed: true,
			}
			res, err := a.driver.Run(ctx, agent.Request{
				Principal:   cfg.Owner,
				SessionKey:  routing.SessionKey(msg),
				Destination: routing.DestinationFor(msg),
				Directive:   msg.Body,
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "\n[turns=%d toolCalls=%d outcome=%s]\n", res.Turns, res.ToolCalls, res.Outcome)
			return err
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model to use")
	cmd.Flags().BoolVar(&noAck, "no-ack", false, "skip the acknowledgement message")

	return cmd
}

const (
	cliChannelID = "cli"
	cliChatID    = "cli"
)

// printChannel is a send-only surface that writes deliveries to w.
type printChannel struct {
	w  io.Writer
	mu sync.Mutex
	n  int
}

func newPrintChannel(w io.Writer) *printChannel {
	return &printChannel{w: w}
}

func (p *printChannel) ID() string { return cliChannelID }

func (p *printChannel) Capabilities() domain.ChannelCapabilities {
	return domain.ChannelCapabilities{ChatTypes: []domain.ChatType{domain.ChatTypeDM}, Reactions: true}
}

func (p *printChannel) Start(ctx context.Context) error { return nil }
func (p *printChannel) Stop(ctx context.Context) error  { return nil }

func (p *printChannel) Send(_ context.Context, msg domain.OutboundMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	id := fmt.Sprintf("%s-%d", cliChannelID, p.n)
	if _, err := fmt.Fprintf(p.w, "[%s] %s\n", id, msg.Body); err != nil {
		return "", err
	}
	return id, nil
}

func (p *printChannel) React(_ context.Context, _, messageID, emoji string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.w, "[%s] +%s\n", messageID, emoji)
	return err
}

func (p *printChannel) OnMessage(func(domain.InboundMessage)) {}
func (p *printChannel) OnReaction(func(domain.ReactionEvent)) {}
