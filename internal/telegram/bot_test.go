package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"msgsort/internal/admincmd"
	"msgsort/internal/models"
	"msgsort/internal/services"
	"msgsort/pkg/categorizer"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c)
	return tgbotapi.Message{}, nil
}

type fakeIngester struct {
	mu  sync.Mutex
	got *models.Message
	res categorizer.Result
	err error
}

func (f *fakeIngester) Ingest(_ context.Context, msg *models.Message) (categorizer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = msg
	return f.res, f.err
}

type fakeCommands struct {
	got string
}

func (f *fakeCommands) Handle(_ context.Context, text string) admincmd.Reply {
	f.got = text
	if text == "/export_categories" {
		return admincmd.Reply{Document: &admincmd.Document{Name: "categories.csv", Data: []byte("name,keywords\n"), Caption: "cap"}}
	}
	return admincmd.Reply{Text: "ok"}
}

func textUpdate(text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: 77, Type: "group"},
		From: &tgbotapi.User{ID: 5, UserName: "ana"},
	}
	if len(text) > 0 && text[0] == '/' {
		end := len(text)
		for i, r := range text {
			if r == ' ' {
				end = i
				break
			}
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return tgbotapi.Update{Message: msg}
}

func TestHandleUpdate_CategorizesText(t *testing.T) {
	sender := &fakeSender{}
	ing := &fakeIngester{res: categorizer.Result{Category: "sin_categoria", Confidence: 0}}
	bot := NewBot(sender, ing, &fakeCommands{})

	bot.HandleUpdate(context.Background(), textUpdate("comprar pan"))

	require.NotNil(t, ing.got)
	assert.Equal(t, int64(77), ing.got.ChatID)
	assert.Equal(t, int64(5), ing.got.UserID)
	assert.Equal(t, "ana", *ing.got.Username)
	assert.Equal(t, "group", ing.got.ChatType)

	require.Len(t, sender.sent, 1)
	reply := sender.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, tgbotapi.ModeMarkdown, reply.ParseMode)
	assert.Equal(t, "✅ Categorizado como: *sin\\_categoria*\n🎯 Confianza: 0.0%", reply.Text)
}

func TestHandleUpdate_NoCategoriesAndFailures(t *testing.T) {
	sender := &fakeSender{}
	ing := &fakeIngester{err: services.ErrNoCategories}
	bot := NewBot(sender, ing, &fakeCommands{})

	bot.HandleUpdate(context.Background(), textUpdate("hola"))
	assert.Equal(t, noCategoriesReply, sender.sent[0].(tgbotapi.MessageConfig).Text)

	ing.err = errors.New("db down")
	bot.HandleUpdate(context.Background(), textUpdate("hola"))
	assert.Contains(t, sender.sent[1].(tgbotapi.MessageConfig).Text, "Error al procesar")
}

func TestHandleUpdate_Commands(t *testing.T) {
	sender := &fakeSender{}
	cmds := &fakeCommands{}
	ing := &fakeIngester{}
	bot := NewBot(sender, ing, cmds)

	bot.HandleUpdate(context.Background(), textUpdate("/lc"))
	assert.Equal(t, "/lc", cmds.got)
	assert.Nil(t, ing.got)
	assert.Equal(t, "ok", sender.sent[0].(tgbotapi.MessageConfig).Text)

	bot.HandleUpdate(context.Background(), textUpdate("/export_categories"))
	doc := sender.sent[1].(tgbotapi.DocumentConfig)
	assert.Equal(t, "cap", doc.Caption)
	assert.Equal(t, "categories.csv", doc.File.(tgbotapi.FileBytes).Name)
}

func TestHandleUpdate_IgnoresNonText(t *testing.T) {
	sender := &fakeSender{}
	bot := NewBot(sender, &fakeIngester{}, &fakeCommands{})
	bot.HandleUpdate(context.Background(), tgbotapi.Update{})
	bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}})
	assert.Empty(t, sender.sent)
}

func TestRun_StopsWhenChannelCloses(t *testing.T) {
	sender := &fakeSender{}
	bot := NewBot(sender, &fakeIngester{res: categorizer.Result{Category: "x"}}, &fakeCommands{})

	updates := make(chan tgbotapi.Update, 3)
	for i := 0; i < 3; i++ {
		updates <- textUpdate("hola")
	}
	close(updates)
	bot.Run(context.Background(), updates)
	assert.Len(t, sender.sent, 3)
}
