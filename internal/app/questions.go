package app

import (
	"context"
	"fmt"

	"live-quiz-service/internal/domain"
)

// StoreQuestionLoader serves the question catalog straight from the document
// store's questions collection. Used when no dedicated authoring database is
// configured; the admin endpoints write to the same collection.
type StoreQuestionLoader struct {
	store DocumentStore
}

func NewStoreQuestionLoader(store DocumentStore) *StoreQuestionLoader {
	return &StoreQuestionLoader{store: store}
}

func (l *StoreQuestionLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	docs, err := l.store.List(ctx, CollectionQuestions, nil, ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	questions := make([]domain.Question, 0, len(docs))
	for _, doc := range docs {
		questions = append(questions, domain.QuestionFromFields(doc.ID, doc.Fields))
	}
	return questions, nil
}
