// Package tests exercises the transports together against one app: the HTTP
// API, the queue worker and the Telegram bot share a category registry and a
// message table.
package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"msgsort/internal/apihandlers"
	"msgsort/internal/app"
	"msgsort/internal/config"
	"msgsort/internal/metrics"
	"msgsort/internal/models"
	"msgsort/internal/store/mocks"
	"msgsort/internal/store/sqlite"
	"msgsort/internal/tasks"
	"msgsort/internal/telegram"
	"msgsort/internal/worker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (s *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c)
	return tgbotapi.Message{}, nil
}

func (s *recordingSender) lastText(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent)
	msg, ok := s.sent[len(s.sent)-1].(tgbotapi.MessageConfig)
	require.True(t, ok, "last reply is not a text message")
	return msg.Text
}

func newApp(t *testing.T, jc *mocks.JobClient) *app.App {
	t.Helper()
	st, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(st.Close)

	cfg := &config.Config{}
	cfg.Database.Driver = config.DriverSQLite
	cfg.Categorizer.SimilarityThreshold = 0.7
	cfg.Categorizer.DefaultCategory = "sin_categoria"

	a, err := app.NewWithStore(context.Background(), cfg, st, jc, metrics.New(nil))
	require.NoError(t, err)
	return a
}

func request(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func commandUpdate(text string) tgbotapi.Update {
	u := textUpdate(text)
	cmdLen := len(text)
	for i, r := range text {
		if r == ' ' {
			cmdLen = i
			break
		}
	}
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	return u
}

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: 42, Type: models.ChatTypePrivate},
		From: &tgbotapi.User{ID: 7, UserName: "ana"},
	}}
}

func TestMessageFlowAcrossTransports(t *testing.T) {
	ctx := context.Background()

	var queued *models.Message
	jc := new(mocks.JobClient)
	jc.On("EnqueueCategorizeMessage", mock.Anything, mock.AnythingOfType("*models.Message")).
		Run(func(args mock.Arguments) { queued = args.Get(1).(*models.Message) }).
		Return("task-1", nil).Once()

	a := newApp(t, jc)
	router := apihandlers.NewRouter(a)
	sender := &recordingSender{}
	bot := telegram.NewBot(sender, a.MessageService, a.Commands)

	// Before any category exists the bot refuses to file messages.
	bot.HandleUpdate(ctx, textUpdate("vamos al cine"))
	assert.Contains(t, sender.lastText(t), "No hay categorías configuradas")

	// One category is created over HTTP, the other from Telegram.
	rec := request(t, router, http.MethodPost, "/api/v1/categories",
		apihandlers.CreateCategoryRequest{Name: "trabajo", Keywords: []string{"reunion", "oficina"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	bot.HandleUpdate(ctx, commandUpdate("/add_category ocio cine, playa"))
	assert.Contains(t, sender.lastText(t), "ocio")
	cats, err := a.CategoryService.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 2)

	// The API queues a message, and the worker files it.
	rec = request(t, router, http.MethodPost, "/api/v1/messages?async=true",
		apihandlers.IngestMessageRequest{ChatID: 1, UserID: 2, Text: "reunio hoy"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.NotNil(t, queued)
	jc.AssertExpectations(t)

	task, err := tasks.NewCategorizeMessageTask(queued)
	require.NoError(t, err)
	handle := worker.HandleCategorizeMessage(worker.MessageDeps{Ingester: a.MessageService})
	require.NoError(t, handle(ctx, task))

	// The bot files a plain text message.
	bot.HandleUpdate(ctx, textUpdate("vamos al cine"))
	assert.Contains(t, sender.lastText(t), "ocio")
	assert.Contains(t, sender.lastText(t), "100.0%")

	// And a synchronous API ingest that matches nothing.
	rec = request(t, router, http.MethodPost, "/api/v1/messages",
		apihandlers.IngestMessageRequest{ChatID: 1, UserID: 2, Text: "comprar pan"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = request(t, router, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data models.MessageStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 3, body.Data.Total)

	counts := map[string]int64{}
	for _, row := range body.Data.Categories {
		counts[row.Category] = row.Count
	}
	assert.Equal(t, map[string]int64{"trabajo": 1, "ocio": 1, "sin_categoria": 1}, counts)

	// The stats command over Telegram reads the same table.
	bot.HandleUpdate(ctx, commandUpdate("/stats"))
	assert.Contains(t, sender.lastText(t), "Total de mensajes: 3")
}

func TestWorkerSeesCategoriesAddedElsewhere(t *testing.T) {
	ctx := context.Background()
	st, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(st.Close)

	cfg := &config.Config{}
	cfg.Database.Driver = config.DriverSQLite
	cfg.Categorizer.SimilarityThreshold = 0.7

	// api and worker are separate processes sharing one database
	api, err := app.NewWithStore(ctx, cfg, st, nil, metrics.New(nil))
	require.NoError(t, err)
	wrk, err := app.NewWithStore(ctx, cfg, st, nil, metrics.New(nil))
	require.NoError(t, err)

	_, err = api.CategoryService.AddCategory(ctx, "trabajo", []string{"reunion"})
	require.NoError(t, err)
	assert.Zero(t, wrk.Registry.Len())

	task, err := tasks.NewCategorizeMessageTask(&models.Message{ChatID: 1, Text: "hay reunion"})
	require.NoError(t, err)
	handle := worker.HandleCategorizeMessage(worker.MessageDeps{Ingester: wrk.MessageService})
	require.NoError(t, handle(ctx, task))
	assert.Equal(t, 1, wrk.Registry.Len())

	stats, err := wrk.StatsService.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats.Categories, 1)
	assert.Equal(t, "trabajo", stats.Categories[0].Category)
}

func TestBotFollowsCategoryChangesFromOtherProcesses(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "msgsort.db")
	open := func() *app.App {
		st, err := sqlite.Open(path)
		require.NoError(t, err)
		require.NoError(t, st.Migrate(ctx))
		t.Cleanup(st.Close)

		cfg := &config.Config{}
		cfg.Database.Driver = config.DriverSQLite
		cfg.Categorizer.SimilarityThreshold = 0.7
		cfg.Categorizer.DefaultCategory = "sin_categoria"
		a, err := app.NewWithStore(ctx, cfg, st, nil, metrics.New(nil))
		require.NoError(t, err)
		return a
	}

	cli := open()
	_, err := cli.CategoryService.AddCategory(ctx, "trabajo", []string{"reunion"})
	require.NoError(t, err)

	botApp := open()
	sender := &recordingSender{}
	bot := telegram.NewBot(sender, botApp.MessageService, botApp.Commands)

	bot.HandleUpdate(ctx, textUpdate("tenemos una reunion"))
	assert.Contains(t, sender.lastText(t), "trabajo")

	// deleted from the command line while the bot runs
	require.NoError(t, cli.CategoryService.DeleteCategory(ctx, "trabajo"))
	bot.HandleUpdate(ctx, textUpdate("tenemos una reunion"))
	assert.Contains(t, sender.lastText(t), "No hay categorías configuradas")

	_, err = cli.CategoryService.AddCategory(ctx, "ocio", []string{"cine"})
	require.NoError(t, err)
	bot.HandleUpdate(ctx, textUpdate("vamos al cine"))
	assert.Contains(t, sender.lastText(t), "ocio")

	// an admin on Telegram removes a category the bot never created
	bot.HandleUpdate(ctx, commandUpdate("/delete_category ocio"))
	assert.Contains(t, sender.lastText(t), "eliminada")

	_, err = cli.CategoryService.AddCategory(ctx, "compras", []string{"pan"})
	require.NoError(t, err)
	bot.HandleUpdate(ctx, commandUpdate("/add_category compras leche"))
	assert.Contains(t, sender.lastText(t), "ya existe")

	stats, err := cli.StatsService.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Total)
}
