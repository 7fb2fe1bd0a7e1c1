package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"msgsort/internal/telegram"
)

// botCmd runs the Telegram bot with long polling.
var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	Long: `Connects to Telegram with telegram.token (TELEGRAM_BOT_TOKEN). Commands such as
/add_category, /list_categories, /delete_category, /stats and /export_categories
manage categories; every other text message is categorized, stored and answered.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		cfg := appInstance.Config
		if err := cfg.ValidateTelegram(); err != nil {
			return fmt.Errorf("invalid telegram config: %w", err)
		}

		api, updates, err := telegram.Connect(cfg.Telegram.Token, cfg.Telegram.PollTimeout, cfg.Telegram.Debug)
		if err != nil {
			return fmt.Errorf("failed to connect to Telegram: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bot := telegram.NewBot(api, appInstance.MessageService, appInstance.Commands)
		log.WithField("categories", appInstance.Registry.Len()).Info("Bot started, waiting for messages")
		bot.Run(ctx, updates)

		api.StopReceivingUpdates()
		log.Info("Bot stopped.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
}
