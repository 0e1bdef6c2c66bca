package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"compliscore/internal/domain"
)

// QuestionLoader fetches the full question bank from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

const bankKey = "assessment:questions"

// QuestionCache caches the question bank in Redis (one hash, question JSON per
// field) and falls back to a loader on cache miss.
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

func (c *QuestionCache) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	raw, err := c.client.HGet(ctx, bankKey, id).Result()
	if err == nil {
		var question domain.Question
		if err := json.Unmarshal([]byte(raw), &question); err == nil {
			return question, nil
		}
	}

	bank, err := c.fill(ctx)
	if err != nil {
		return domain.Question{}, err
	}
	question, ok := bank[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return question, nil
}

func (c *QuestionCache) ListQuestions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	fields, err := c.client.HGetAll(ctx, bankKey).Result()
	var bank map[string]domain.Question
	if err == nil && len(fields) > 0 {
		bank = make(map[string]domain.Question, len(fields))
		for id, raw := range fields {
			var question domain.Question
			if err := json.Unmarshal([]byte(raw), &question); err != nil {
				bank = nil
				break
			}
			bank[id] = question
		}
	}
	if bank == nil {
		bank, err = c.fill(ctx)
		if err != nil {
			return nil, err
		}
	}

	out := make([]domain.Question, 0, len(bank))
	for _, question := range bank {
		if filter.Matches(question) {
			out = append(out, question)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Invalidate drops the cached bank, forcing the next read through the loader.
func (c *QuestionCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, bankKey).Err()
}

func (c *QuestionCache) fill(ctx context.Context) (map[string]domain.Question, error) {
	result, err, _ := c.sf.Do(bankKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		fields, err := c.client.HGetAll(ctx, bankKey).Result()
		if err == nil && len(fields) > 0 {
			bank := make(map[string]domain.Question, len(fields))
			ok := true
			for id, raw := range fields {
				var question domain.Question
				if err := json.Unmarshal([]byte(raw), &question); err != nil {
					ok = false
					break
				}
				bank[id] = question
			}
			if ok {
				return bank, nil
			}
		}

		questions, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}
		bank := make(map[string]domain.Question, len(questions))
		pipe := c.client.Pipeline()
		for _, question := range questions {
			bank[question.ID] = question
			data, err := json.Marshal(question)
			if err != nil {
				return nil, err
			}
			pipe.HSet(ctx, bankKey, question.ID, string(data))
		}
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, bankKey, ttl)
		}
		_, _ = pipe.Exec(ctx)
		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]domain.Question), nil
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
