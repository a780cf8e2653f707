package root

import (
	"github.com/spf13/cobra"
)

// DatabaseURLFlag overrides DATABASE_URL for a single invocation.
const DatabaseURLFlag = "database-url"

// Exported RootCmd
var RootCmd = &cobra.Command{
	Use:           "adhoc",
	Short:         "Ad Hoc Web UI administration",
	Long:          "Command line interface for managing Ad Hoc Web UI accounts directly in the database.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	RootCmd.PersistentFlags().String(DatabaseURLFlag, "", "database URL (defaults to DATABASE_URL)")
}

// Optional helper to return the RootCmd
func GetRoot() *cobra.Command {
	return RootCmd
}
