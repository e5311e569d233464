package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/notesync/internal/source/markdown"
)

func newDaemonCommand(app *App) *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the periodic sync scheduler in the foreground",
		Long: `Start the periodic sync scheduler: one immediate reconciliation run,
then a run every interval until interrupted. With --watch, file changes in a
source directory additionally trigger a sync of that source.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(app.Runtimes) == 0 {
				return fmt.Errorf("no calendar sources registered; run 'notesync source add' first")
			}
			if interval > 0 {
				app.Driver.SetInterval(ctx, interval)
			}

			app.Driver.Start(ctx)
			defer app.Driver.Stop()

			if watch {
				for _, runtime := range app.Runtimes {
					sourceID := runtime.Registered.Meta.ID()
					name := runtime.Registered.Meta.Name()
					watcher := markdown.NewWatcher(runtime.Registered.Meta.Directory(), app.Logger).
						WithDebounce(app.Config.WatchDebounce)
					go func() {
						err := watcher.Run(ctx, func() {
							if _, err := app.Driver.TriggerSync(ctx, sourceID); err != nil {
								app.Logger.Warn("watch-triggered sync failed",
									"source", name, "error", err)
							}
						})
						if err != nil && ctx.Err() == nil {
							app.Logger.Error("watcher stopped", "source", name, "error", err)
						}
					}()
				}
			}

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "also sync on local file changes")
	cmd.Flags().DurationVar(&interval, "interval", 0, "override the sync interval (e.g. 10m)")
	return cmd
}
