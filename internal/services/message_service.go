package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"msgsort/internal/metrics"
	"msgsort/internal/models"
	"msgsort/internal/store"
	"msgsort/internal/util"
	"msgsort/pkg/categorizer"
)

// ErrNoCategories is returned by Ingest while no category is configured.
// Such messages are not stored.
var ErrNoCategories = errors.New("no categories configured")

type MessageService struct {
	store       store.MessageStore
	categories  *CategoryService
	categorizer *categorizer.Categorizer
	metrics     *metrics.Recorder
}

func NewMessageService(ms store.MessageStore, cs *CategoryService, c *categorizer.Categorizer, m *metrics.Recorder) *MessageService {
	return &MessageService{store: ms, categories: cs, categorizer: c, metrics: m}
}

// Classify runs the categorizer against the current categories without
// storing anything.
func (s *MessageService) Classify(ctx context.Context, text string) (categorizer.Result, error) {
	snap, err := s.categories.Snapshot(ctx)
	if err != nil {
		return categorizer.Result{}, err
	}
	return s.classify(text, snap), nil
}

// Explain reports how each category scored against text.
func (s *MessageService) Explain(ctx context.Context, text string) ([]categorizer.CategoryScore, error) {
	snap, err := s.categories.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.categorizer.Scores(text, snap), nil
}

// Ingest categorizes msg, fills in its category fields and stores it.
func (s *MessageService) Ingest(ctx context.Context, msg *models.Message) (categorizer.Result, error) {
	msg.Text = util.CleanText(msg.Text, "message")
	if strings.TrimSpace(msg.Text) == "" {
		return categorizer.Result{}, fmt.Errorf("%w: message text is empty", models.ErrValidation)
	}
	snap, err := s.categories.Snapshot(ctx)
	if err != nil {
		return categorizer.Result{}, err
	}
	if len(snap) == 0 {
		return categorizer.Result{}, ErrNoCategories
	}
	if msg.ChatType == "" {
		msg.ChatType = models.ChatTypeAPI
	}

	res := s.classify(msg.Text, snap)
	confidence := res.Confidence
	msg.Category = res.Category
	msg.ConfidenceScore = &confidence
	if res.MatchedKeyword != "" {
		kw := res.MatchedKeyword
		msg.MatchedKeyword = &kw
	}

	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return res, fmt.Errorf("store message from chat %d: %w", msg.ChatID, err)
	}
	log.WithFields(log.Fields{
		"chat_id":    msg.ChatID,
		"user_id":    msg.UserID,
		"category":   res.Category,
		"confidence": res.Confidence,
		"method":     res.Method,
	}).Info("Message categorized")
	return res, nil
}

func (s *MessageService) classify(text string, snap categorizer.Snapshot) categorizer.Result {
	start := time.Now()
	res := s.categorizer.Categorize(text, snap)
	s.metrics.ObserveCategorization(res.Category, string(res.Method), res.Confidence, time.Since(start), res.Err != nil)
	if res.Err != nil {
		log.WithError(res.Err).Error("Categorization failed, using default category")
	}
	return res
}
