package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the notesync command tree.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "notesync",
		Short: "Push markdown calendar notes to a remote calendar",
		Long: `notesync is a one-way bridge that pushes locally-stored calendar
events (markdown files with YAML front matter) to a remote calendar.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newSyncCommand(app),
		newDaemonCommand(app),
		newAuthCommand(app),
		newSourceCommand(app),
		newVersionCommand(),
	)
	return root
}
