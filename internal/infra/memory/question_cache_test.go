package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

func TestQuestionCacheReloadsOnExpiry(t *testing.T) {
	loader := &countingLoader{questions: cacheQuestions()}
	cache := NewQuestionCache(loader, time.Minute)

	now := time.Now()
	cache.clock = func() time.Time { return now }

	if _, err := cache.ActiveQuestions(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, err := cache.ActiveQuestions(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected single backing load, got %d", loader.calls)
	}

	// Jitter extends the TTL by at most 10%.
	now = now.Add(2 * time.Minute)
	if _, err := cache.ActiveQuestions(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, got %d calls", loader.calls)
	}
}

func TestQuestionCacheFiltersInactive(t *testing.T) {
	loader := &countingLoader{questions: cacheQuestions()}
	cache := NewQuestionCache(loader, time.Minute)

	questions, err := cache.ActiveQuestions(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(questions) != 1 || questions[0].ID != "q1" {
		t.Fatalf("expected only active q1, got %+v", questions)
	}
}

func TestQuestionCacheGetQuestion(t *testing.T) {
	cache := NewQuestionCache(&countingLoader{questions: cacheQuestions()}, time.Minute)

	q, err := cache.GetQuestion(context.Background(), "q1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if q.CorrectAnswer != 1 {
		t.Fatalf("unexpected question: %+v", q)
	}

	// Inactive questions are not resolvable.
	if _, err := cache.GetQuestion(context.Background(), "q2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQuestionCacheInvalidate(t *testing.T) {
	loader := &countingLoader{questions: cacheQuestions()}
	cache := NewQuestionCache(loader, time.Minute)

	_, _ = cache.ActiveQuestions(context.Background())
	cache.Invalidate()
	_, _ = cache.ActiveQuestions(context.Background())

	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, got %d calls", loader.calls)
	}
}

type countingLoader struct {
	questions []domain.Question
	calls     int
}

func (l *countingLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	l.calls++
	return l.questions, nil
}

func cacheQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:               "q1",
			Text:             "What is 2 + 2?",
			Options:          []string{"3", "4"},
			CorrectAnswer:    1,
			TimeLimitSeconds: 30,
			Active:           true,
		},
		{
			ID:               "q2",
			Text:             "Retired question",
			Options:          []string{"A", "B"},
			CorrectAnswer:    0,
			TimeLimitSeconds: 30,
			Active:           false,
		},
	}
}
