package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"msgsort/internal/app"
	"msgsort/internal/config"
	"msgsort/internal/logging"
)

// annotationNoApp marks commands that only need the configuration.
const annotationNoApp = "msgsort/no-app"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "msgsort",
	Short: "Keyword message categorizer",
	Long: `msgsort sorts short text messages into user-defined categories by keyword.
A message goes to the first category with a keyword it contains, otherwise to the
closest keyword above the similarity threshold, otherwise to the default category.
Categories are managed from this CLI, the HTTP API or a Telegram bot.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is given, print help.
		_ = cmd.Help()
	},
	// PersistentPreRunE runs before any subcommand's RunE
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Parent() != nil && cmd.Parent().Name() == "completion" {
			return nil
		}

		// Load configuration once
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
			return err
		}

		ctx := context.WithValue(cmd.Context(), configKey, cfg)
		if !needsApp(cmd) {
			// hide an app left in the context by an earlier Execute
			cmd.SetContext(context.WithValue(ctx, appKey, (*app.App)(nil)))
			return nil
		}

		appInstance, err := app.NewApp(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		// Store the app instance in the command's context
		cmd.SetContext(context.WithValue(ctx, appKey, appInstance))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return nil
		}
		return appInstance.Close()
	},
}

func needsApp(cmd *cobra.Command) bool {
	if cmd.Annotations[annotationNoApp] == "true" {
		return false
	}
	// classify --categories works on a file and never touches the database
	if f := cmd.Flags().Lookup("categories"); f != nil && f.Changed {
		return false
	}
	return true
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		os.Exit(1)
	}
}

// Define a custom type for the context key to avoid collisions.
type contextKey string

const (
	appKey    contextKey = "app"
	configKey contextKey = "config"
)

// GetAppFromContext retrieves the app instance stored by PersistentPreRunE.
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		// This should not happen if PersistentPreRunE ran successfully
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}

// GetConfigFromContext is available to every command, including those that
// skip app initialization.
func GetConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not found in context")
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check database connectivity and other diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to get app instance: %w", err)
		}
		cfg := appInstance.Config

		fmt.Fprintf(out, "Checking %s database connectivity...\n", cfg.Database.Driver)
		if err := appInstance.Store.Ping(ctx); err != nil {
			fmt.Fprintln(out, color.RedString("Database ping failed: %v", err))
			return fmt.Errorf("database ping failed: %w", err)
		}
		fmt.Fprintln(out, color.GreenString("Database connection successful."))

		n := appInstance.Registry.Len()
		if n == 0 {
			fmt.Fprintln(out, color.YellowString("No categories configured; every message will be filed as %q.", appInstance.CategoryService.DefaultCategory()))
		} else {
			fmt.Fprintf(out, "Categories loaded: %d\n", n)
		}
		cc := appInstance.Categorizer.Config()
		fmt.Fprintf(out, "Similarity threshold: %.2f, match policy: %s, default category: %s\n",
			cc.SimilarityThreshold, cc.MatchPolicy, cc.DefaultCategory)

		if appInstance.JobClient == nil {
			fmt.Fprintln(out, color.YellowString("Redis not configured; asynchronous ingest is disabled."))
		} else {
			fmt.Fprintf(out, "Redis queue: %s\n", cfg.Redis.Address)
		}
		if err := cfg.ValidateTelegram(); err != nil {
			fmt.Fprintln(out, color.YellowString("Telegram bot unavailable: %v", err))
		} else {
			fmt.Fprintln(out, color.GreenString("Telegram token present."))
		}
		return nil
	},
}
