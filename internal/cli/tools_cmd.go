package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/rpc"
	"github.com/spf13/cobra"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and invoke the agent's tools",
	}

	cmd.AddCommand(newToolsListCmd())
	cmd.AddCommand(newToolsCallCmd())
	return cmd
}

// toolsApp builds the tools without a model; deliveries go to w.
func toolsApp(w io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg, paths, log, appOptions{noModel: true, extra: []domain.Channel{newPrintChannel(w)}})
}

func newToolsListCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := toolsApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			for _, d := range a.tools.Definitions() {
				fmt.Fprintf(out, "  %-16s %s\n", d.Name, d.Description)
				if verbose {
					fmt.Fprintf(out, "  %-16s %s\n", "", compact(d.InputSchema))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print input schemas")
	return cmd
}

func newToolsCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool> [arguments-json]",
		Short: "Invoke a tool through the RPC gateway",
		Long:  "Invoke a tool the way the agent does: an initialize handshake followed by one tools/call. Messages the tool sends to the \"cli\" channel are printed.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := toolsApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			arguments := json.RawMessage(`{}`)
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return errors.New("arguments must be valid JSON")
				}
				arguments = json.RawMessage(args[1])
			}

			res, err := callTool(cmd.Context(), a.rpc, "cli", domain.PendingToolCall{Name: args[0], Arguments: arguments})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			if !res.Success {
				return fmt.Errorf("tool %s failed", args[0])
			}
			return nil
		},
	}
}

// callTool runs initialize then tools/call for one session.
func callTool(ctx context.Context, gw *rpc.Gateway, session string, call domain.PendingToolCall) (domain.ToolInvocationResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	hello, err := rpc.NewInitializeRequest(session)
	if err != nil {
		return domain.ToolInvocationResult{}, err
	}
	if _, err := rpc.DecodeResponse(gw.Handle(ctx, hello)); err != nil {
		return domain.ToolInvocationResult{}, fmt.Errorf("initialize: %w", err)
	}

	req, err := rpc.NewCallRequest(session, call)
	if err != nil {
		return domain.ToolInvocationResult{}, err
	}
	return rpc.DecodeCallResult(gw.Handle(ctx, req))
}

func compact(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(data)
}
