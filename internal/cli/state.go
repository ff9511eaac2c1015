package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or prune locally saved state",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved documents",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			docs, err := a.docs.List(ctx)
			if err != nil {
				return err
			}
			if a.reporter.Format() == "json" {
				return writeJSON(a, docs)
			}
			if len(docs) == 0 {
				fmt.Fprintln(a.out, "No saved state")
				return nil
			}
			for _, d := range docs {
				fmt.Fprintf(a.out, "%-28s %8s  updated %s\n",
					d.Key, humanize.IBytes(uint64(d.Size)), humanize.Time(d.UpdatedAt))
			}
			return nil
		}),
	})

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete saved documents not updated within --older-than",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			maxAge, _ := a.cmd.Flags().GetDuration("older-than")
			if maxAge <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			n, err := a.docs.Cleanup(ctx, maxAge)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed %d document(s)\n", n)
			return nil
		}),
	}
	prune.Flags().Duration("older-than", 30*24*time.Hour, "Minimum age of documents to delete")
	cmd.AddCommand(prune)
	return cmd
}
