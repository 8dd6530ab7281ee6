package cli

import (
	"github.com/spf13/cobra"
)

var Version string

// Persistent flag values shared by every command.
var (
	flagPort      string
	flagDataDir   string
	flagSubjectID string
)

// RootCmd represents the root command
var RootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Live presence and visitor insights for a portfolio site",
	Long: `Folio - the live backend of a personal portfolio.

Folio keeps the owner's presence in sync with the Lanyard relay and serves
visitor insights: a global view counter, the current visitor's location and a
short history of recent visitors.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	// Default to serve command if no subcommand provided
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return runServe(cmd, args)
		}
		return cmd.Help()
	},
}

// Execute is called by main
func Execute(version string) error {
	Version = version
	RootCmd.Version = version
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&flagPort, "port", "", "Server port (overrides config and PORT)")
	RootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory (overrides config and DATA_DIR)")
	RootCmd.PersistentFlags().StringVar(&flagSubjectID, "subject", "", "Presence subject id (overrides config and FOLIO_SUBJECT_ID)")

	RootCmd.AddCommand(serveCmd)
	setupSelfUpgrade()
}
