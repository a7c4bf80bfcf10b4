package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// DocumentStore is an in-memory implementation of app.DocumentStore, useful
// for tests, demos, and single-node runs without Redis.
type DocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]app.Fields
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		collections: make(map[string]map[string]app.Fields),
	}
}

func (s *DocumentStore) Create(_ context.Context, collection string, fields app.Fields, id string) (app.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.New().String()
	}
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]app.Fields)
		s.collections[collection] = docs
	}
	docs[id] = cloneFields(fields)
	return app.Document{ID: id, Fields: cloneFields(fields)}, nil
}

func (s *DocumentStore) Get(_ context.Context, collection, id string) (app.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.collections[collection][id]
	if !ok {
		return app.Document{}, domain.ErrNotFound
	}
	return app.Document{ID: id, Fields: cloneFields(fields)}, nil
}

func (s *DocumentStore) Update(_ context.Context, collection, id string, fields app.Fields) (app.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.collections[collection][id]
	if !ok {
		return app.Document{}, domain.ErrNotFound
	}
	for k, v := range fields {
		existing[k] = v
	}
	return app.Document{ID: id, Fields: cloneFields(existing)}, nil
}

func (s *DocumentStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.collections[collection], id)
	return nil
}

func (s *DocumentStore) List(_ context.Context, collection string, preds []app.Predicate, opts app.ListOptions) ([]app.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []app.Document
	for id, fields := range s.collections[collection] {
		if app.Matches(fields, preds) {
			out = append(out, app.Document{ID: id, Fields: cloneFields(fields)})
		}
	}
	return app.ApplyListOptions(out, opts), nil
}

func cloneFields(fields app.Fields) app.Fields {
	out := make(app.Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
