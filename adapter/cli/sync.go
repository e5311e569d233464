package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [source]",
		Short: "Run one reconciliation pass now",
		Long: `Run one reconciliation pass for the named source, or for every
registered source when no name is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if len(args) == 1 {
				runtime, err := app.ResolveSource(args[0])
				if err != nil {
					return err
				}
				result, err := app.Driver.TriggerSync(ctx, runtime.Registered.Meta.ID())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n",
					runtime.Registered.Meta.Name(), result)
				return nil
			}

			if len(app.Runtimes) == 0 {
				return fmt.Errorf("no calendar sources registered; run 'notesync source add' first")
			}
			for _, runtime := range app.Runtimes {
				name := runtime.Registered.Meta.Name()
				if !runtime.Manager.Authenticated() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: not authenticated, skipping\n", name)
					continue
				}
				result, err := app.Driver.TriggerSync(ctx, runtime.Registered.Meta.ID())
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: sync failed: %v\n", name, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, result)
			}
			return nil
		},
	}
}
