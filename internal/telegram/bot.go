// Package telegram connects the categorizer to a Telegram bot: slash
// commands administer categories, every other text message is categorized,
// stored and answered.
package telegram

import (
	"context"
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
	"msgsort/internal/admincmd"
	"msgsort/internal/models"
	"msgsort/internal/services"
	"msgsort/pkg/categorizer"
)

const noCategoriesReply = "⚠️ No hay categorías configuradas. Usa /add_category para crear una."

// Sender is the part of *tgbotapi.BotAPI the bot needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Ingester interface {
	Ingest(ctx context.Context, msg *models.Message) (categorizer.Result, error)
}

type CommandHandler interface {
	Handle(ctx context.Context, text string) admincmd.Reply
}

type Bot struct {
	sender   Sender
	messages Ingester
	commands CommandHandler
}

func NewBot(sender Sender, messages Ingester, commands CommandHandler) *Bot {
	return &Bot{sender: sender, messages: messages, commands: commands}
}

// Run handles updates until ctx is cancelled or the channel closes, then
// waits for in-flight updates to finish.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func(u tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}

// HandleUpdate processes one update. Updates without a text message are
// ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" || msg.Chat == nil {
		return
	}

	var reply admincmd.Reply
	if msg.IsCommand() {
		reply = b.commands.Handle(ctx, msg.Text)
	} else {
		reply = b.categorize(ctx, msg)
	}
	b.send(msg.Chat.ID, reply)
}

func (b *Bot) categorize(ctx context.Context, msg *tgbotapi.Message) admincmd.Reply {
	record := &models.Message{
		ChatID:   msg.Chat.ID,
		ChatType: msg.Chat.Type,
		Text:     msg.Text,
	}
	if msg.From != nil {
		record.UserID = msg.From.ID
		if msg.From.UserName != "" {
			username := msg.From.UserName
			record.Username = &username
		}
	}

	res, err := b.messages.Ingest(ctx, record)
	switch {
	case err == nil:
		return admincmd.Reply{Text: admincmd.FormatCategorized(res), Markdown: true}
	case errors.Is(err, services.ErrNoCategories):
		return admincmd.Reply{Text: noCategoriesReply}
	default:
		log.WithError(err).WithField("chat_id", record.ChatID).Error("Failed to process message")
		return admincmd.Reply{Text: "❌ Error al procesar el mensaje. Inténtalo de nuevo más tarde."}
	}
}

func (b *Bot) send(chatID int64, reply admincmd.Reply) {
	var c tgbotapi.Chattable
	if reply.Document != nil {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: reply.Document.Name, Bytes: reply.Document.Data})
		doc.Caption = reply.Document.Caption
		c = doc
	} else {
		m := tgbotapi.NewMessage(chatID, reply.Text)
		if reply.Markdown {
			m.ParseMode = tgbotapi.ModeMarkdown
		}
		c = m
	}
	if _, err := b.sender.Send(c); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Failed to send Telegram reply")
	}
}

// Connect logs in with token and returns the API client and its update
// channel using long polling.
func Connect(token string, pollTimeout int, debug bool) (*tgbotapi.BotAPI, tgbotapi.UpdatesChannel, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, nil, err
	}
	api.Debug = debug
	log.WithField("username", api.Self.UserName).Info("Authorized on Telegram")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	return api, api.GetUpdatesChan(u), nil
}
