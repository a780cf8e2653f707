package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crucial707/adhoc-web/cmd/cli/root"
	"github.com/crucial707/adhoc-web/cmd/cli/users"
	appconfig "github.com/crucial707/adhoc-web/internal/config"
	"github.com/crucial707/adhoc-web/internal/db"
	"github.com/crucial707/adhoc-web/internal/logging"
	"github.com/crucial707/adhoc-web/internal/repo"
)

// DatabaseURL returns the --database-url flag when given, else the server's
// DATABASE_URL (environment or .env, same defaults as the server).
func DatabaseURL(cmd *cobra.Command, cfg appconfig.Config) string {
	if v, err := cmd.Flags().GetString(root.DatabaseURLFlag); err == nil && v != "" {
		return v
	}
	return cfg.DatabaseURL
}

// Open loads the server configuration, makes sure the schema exists, and
// connects to the user store. Logs go to stderr so they never mix with
// command output.
func Open(cmd *cobra.Command) (*users.Session, error) {
	cfg, err := appconfig.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	url := DatabaseURL(cmd, cfg)
	log := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel)
	log.Debug("opening user store", "database_url", url)

	if err := db.Bootstrap(url); err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	database, _, err := db.Open(cmd.Context(), url, db.Options{MaxOpenConns: 1})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &users.Session{
		Users: repo.NewUserRepo(database),
		Log:   log,
		Close: database.Close,
	}, nil
}
