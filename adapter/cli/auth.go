package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newAuthCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage remote calendar authentication",
	}
	cmd.AddCommand(
		newAuthConnectCommand(app),
		newAuthStatusCommand(app),
		newAuthDisconnectCommand(app),
	)
	return cmd
}

func newAuthConnectCommand(app *App) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "connect <source>",
		Short: "Authorize a source against its provider",
		Long: `Without --code, prints the provider consent URL. Visit it, approve
access, then run the command again with --code set to the authorization code.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runtime, err := app.ResolveSource(args[0])
			if err != nil {
				return err
			}
			if runtime.Google == nil {
				return fmt.Errorf("source %q uses basic auth; set the CalDAV environment variables instead", args[0])
			}

			if code == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Open this URL, approve access, then re-run with --code:")
				fmt.Fprintln(cmd.OutOrStdout(), runtime.Google.AuthURL(uuid.NewString()))
				return nil
			}

			if err := runtime.Manager.Exchange(ctx, code); err != nil {
				return fmt.Errorf("code exchange failed: %w", err)
			}
			token := runtime.Manager.Current()
			if err := app.Creds.Save(ctx, runtime.Registered.Meta.ID(), token); err != nil {
				return fmt.Errorf("persist credentials: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "connected %s\n", runtime.Registered.Meta.Name())
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "authorization code from the consent page")
	return cmd
}

func newAuthStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication state per source",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(app.Runtimes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no calendar sources registered")
				return nil
			}
			for _, runtime := range app.Runtimes {
				meta := runtime.Registered.Meta
				status := "not authenticated"
				if runtime.Manager.Authenticated() {
					status = "authenticated"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-8s %s\n",
					meta.Name(), meta.Provider(), status)
			}
			return nil
		},
	}
}

func newAuthDisconnectCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <source>",
		Short: "Drop stored credentials for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runtime, err := app.ResolveSource(args[0])
			if err != nil {
				return err
			}
			runtime.Manager.Clear()
			if err := app.Creds.Delete(ctx, runtime.Registered.Meta.ID()); err != nil {
				return fmt.Errorf("remove credentials: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "disconnected %s\n", runtime.Registered.Meta.Name())
			return nil
		},
	}
}
