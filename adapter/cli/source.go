package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/notesync/internal/sync/domain"
)

func newSourceCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage registered calendar sources",
	}
	cmd.AddCommand(
		newSourceAddCommand(app),
		newSourceListCommand(app),
		newSourceRemoveCommand(app),
	)
	return cmd
}

func newSourceAddCommand(app *App) *cobra.Command {
	var (
		provider   string
		dir        string
		calendarID string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a local directory as a calendar source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			providerType, err := domain.ParseProviderType(provider)
			if err != nil {
				return err
			}
			absDir, err := filepath.Abs(dir)
			if err != nil {
				return err
			}

			source, err := domain.NewCalendarSource(args[0], providerType, absDir, calendarID)
			if err != nil {
				return err
			}
			if err := app.Sources.Save(ctx, source); err != nil {
				return fmt.Errorf("persist source: %w", err)
			}
			if err := app.RegisterSource(ctx, source); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s) -> %s\n",
				source.Name(), source.Provider(), source.CalendarID())
			if providerType.RequiresOAuth() {
				fmt.Fprintf(cmd.OutOrStdout(), "run 'notesync auth connect %s' to authorize it\n", source.Name())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "google", "remote provider (google, caldav)")
	cmd.Flags().StringVar(&dir, "dir", ".", "directory holding the markdown notes")
	cmd.Flags().StringVar(&calendarID, "calendar", "primary", "remote calendar identifier")
	return cmd
}

func newSourceListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered calendar sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := app.Sources.FindAll(cmd.Context())
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no calendar sources registered")
				return nil
			}
			for _, source := range sources {
				enabled := "enabled"
				if !source.SyncEnabled() {
					enabled = "disabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-8s %-10s %s\n",
					source.Name(), source.Provider(), enabled, source.Directory())
			}
			return nil
		},
	}
}

func newSourceRemoveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <source>",
		Short: "Remove a calendar source and its sync state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runtime, err := app.ResolveSource(args[0])
			if err != nil {
				return err
			}
			id := runtime.Registered.Meta.ID()

			if err := app.States.Delete(ctx, id); err != nil {
				return fmt.Errorf("remove sync state: %w", err)
			}
			if err := app.Creds.Delete(ctx, id); err != nil {
				return fmt.Errorf("remove credentials: %w", err)
			}
			if err := app.Sources.Delete(ctx, id); err != nil {
				return fmt.Errorf("remove source: %w", err)
			}
			app.Driver.Unregister(id)
			delete(app.Runtimes, id)
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", runtime.Registered.Meta.Name())
			return nil
		},
	}
}
