package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"live-quiz-service/internal/domain"
)

// QuestionLoader fetches the question catalog from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionCache caches the question catalog in a Redis hash
// (HSET quiz:questions {questionID} {json}) and falls back to the loader on
// cache miss. Full documents are cached because the runner broadcasts text
// and options, not just answers; the hash never leaves the server.
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

const questionsKey = "quiz:questions"

func (c *QuestionCache) ActiveQuestions(ctx context.Context) ([]domain.Question, error) {
	cached, err := c.client.HGetAll(ctx, questionsKey).Result()
	if err == nil && len(cached) > 0 {
		return activeOnly(decodeQuestions(cached)), nil
	}

	result, err, _ := c.sf.Do(questionsKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		cached, err := c.client.HGetAll(ctx, questionsKey).Result()
		if err == nil && len(cached) > 0 {
			return decodeQuestions(cached), nil
		}

		questions, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		pipe := c.client.Pipeline()
		for _, q := range questions {
			data, err := json.Marshal(q)
			if err != nil {
				continue
			}
			pipe.HSet(ctx, questionsKey, q.ID, data)
		}
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, questionsKey, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return activeOnly(result.([]domain.Question)), nil
}

func (c *QuestionCache) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	data, err := c.client.HGet(ctx, questionsKey, id).Bytes()
	if err == nil {
		var q domain.Question
		if jerr := json.Unmarshal(data, &q); jerr == nil {
			return q, nil
		}
	}

	questions, err := c.ActiveQuestions(ctx)
	if err != nil {
		return domain.Question{}, err
	}
	for _, q := range questions {
		if q.ID == id {
			return q, nil
		}
	}
	return domain.Question{}, domain.ErrNotFound
}

// Invalidate drops the cached catalog.
func (c *QuestionCache) Invalidate() {
	_ = c.client.Del(context.Background(), questionsKey).Err()
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func decodeQuestions(cached map[string]string) []domain.Question {
	questions := make([]domain.Question, 0, len(cached))
	for id, raw := range cached {
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			continue
		}
		if q.ID == "" {
			q.ID = id
		}
		questions = append(questions, q)
	}
	return questions
}

func activeOnly(questions []domain.Question) []domain.Question {
	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if q.Active {
			out = append(out, q)
		}
	}
	return out
}
