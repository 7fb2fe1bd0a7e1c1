package cmd

import (
	"fmt"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"msgsort/internal/app"
)

// migrateCmd applies the schema without loading the rest of the app, so it
// can run before the first start.
var migrateCmd = &cobra.Command{
	Use:         "migrate",
	Short:       "Create or update the database schema",
	Annotations: map[string]string{annotationNoApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfigFromContext(cmd.Context())
		if err != nil {
			return err
		}
		st, err := app.OpenStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		log.WithField("driver", cfg.Database.Driver).Info("Applying schema")
		if err := st.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Schema is up to date."))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
