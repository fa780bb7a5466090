package cli

import (
	"errors"
	"fmt"

	"github.com/soyeahso/vyrtuous/internal/tail"
	"github.com/spf13/cobra"
)

func newTailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Inspect the log-tail trigger",
	}

	cmd.AddCommand(newTailOnceCmd())
	return cmd
}

func newTailOnceCmd() *cobra.Command {
	var (
		path   string
		commit bool
	)

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Print the blocks the next tail poll would hand to the agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if path != "" {
				cfg.Tail.Path = path
			}
			if cfg.Tail.Path == "" {
				return errors.New("no tail path configured (tail.path or --path)")
			}

			a, err := newApp(cfg, paths, log, appOptions{noModel: true})
			if err != nil {
				return err
			}
			defer a.Close()

			t := a.tailer()
			var batch tail.Batch
			if commit {
				batch, err = t.Poll()
			} else {
				batch, err = t.Peek()
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(batch.Blocks) == 0 {
				fmt.Fprintf(out, "no new content in %s (offset %d)\n", t.Path(), batch.To)
				return nil
			}
			fmt.Fprintln(out, tail.FrameBlocks(batch.Blocks))
			fmt.Fprintf(cmd.ErrOrStderr(), "\n[blocks=%d from=%d to=%d reset=%v committed=%v]\n",
				len(batch.Blocks), batch.From, batch.To, batch.Reset, commit)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "override the tailed file")
	cmd.Flags().BoolVar(&commit, "commit", false, "advance the saved offset")
	return cmd
}
