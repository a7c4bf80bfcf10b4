package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// DocumentStore keeps each document as JSON under doc:{collection}:{id} and
// tracks collection membership in a set under docs:{collection}. Filtering
// and ordering happen client-side over the fetched set; collections here are
// session-scoped and small.
type DocumentStore struct {
	client *redis.Client
}

func NewDocumentStore(client *redis.Client) *DocumentStore {
	return &DocumentStore{client: client}
}

func (s *DocumentStore) Create(ctx context.Context, collection string, fields app.Fields, id string) (app.Document, error) {
	if id == "" {
		id = uuid.New().String()
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return app.Document{}, fmt.Errorf("marshal document: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.docKey(collection, id), data, 0)
	pipe.SAdd(ctx, s.setKey(collection), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return app.Document{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return app.Document{ID: id, Fields: fields}, nil
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (app.Document, error) {
	data, err := s.client.Get(ctx, s.docKey(collection, id)).Bytes()
	if err == redis.Nil {
		return app.Document{}, domain.ErrNotFound
	}
	if err != nil {
		return app.Document{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	var fields app.Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return app.Document{}, fmt.Errorf("unmarshal document %s: %w", id, err)
	}
	return app.Document{ID: id, Fields: fields}, nil
}

func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields app.Fields) (app.Document, error) {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return app.Document{}, err
	}
	for k, v := range fields {
		doc.Fields[k] = v
	}

	data, err := json.Marshal(doc.Fields)
	if err != nil {
		return app.Document{}, fmt.Errorf("marshal document: %w", err)
	}
	if err := s.client.Set(ctx, s.docKey(collection, id), data, 0).Err(); err != nil {
		return app.Document{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return doc, nil
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	removed, err := s.client.SRem(ctx, s.setKey(collection), id).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if removed == 0 {
		return domain.ErrNotFound
	}
	if err := s.client.Del(ctx, s.docKey(collection, id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *DocumentStore) List(ctx context.Context, collection string, preds []app.Predicate, opts app.ListOptions) ([]app.Document, error) {
	ids, err := s.client.SMembers(ctx, s.setKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(collection, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	var out []app.Document
	for i, raw := range values {
		str, ok := raw.(string)
		if !ok {
			continue // id in set but document expired/missing
		}
		var fields app.Fields
		if err := json.Unmarshal([]byte(str), &fields); err != nil {
			continue
		}
		if app.Matches(fields, preds) {
			out = append(out, app.Document{ID: ids[i], Fields: fields})
		}
	}
	return app.ApplyListOptions(out, opts), nil
}

func (s *DocumentStore) docKey(collection, id string) string {
	return "doc:" + collection + ":" + id
}

func (s *DocumentStore) setKey(collection string) string {
	return "docs:" + collection
}
