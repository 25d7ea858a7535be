package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"reading-quiz-service/internal/app"
	"reading-quiz-service/internal/domain"
)

const questionsKey = "quiz:questions"

// QuestionCache stores the whole question set as one JSON value in Redis and falls back to
// the source on a miss. Redis errors degrade to a direct load. A non-positive ttl disables
// caching.
type QuestionCache struct {
	client *redis.Client
	source app.QuestionSource
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, source app.QuestionSource, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) LoadQuestions(ctx context.Context) (domain.QuestionSet, error) {
	if c.ttl <= 0 {
		return c.source.LoadQuestions(ctx)
	}
	if set, ok := c.cached(ctx); ok {
		return set, nil
	}

	result, err, _ := c.sf.Do(questionsKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if set, ok := c.cached(ctx); ok {
			return set, nil
		}

		set, err := c.source.LoadQuestions(ctx)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		if raw, err := json.Marshal(set); err == nil {
			_ = c.client.Set(ctx, questionsKey, raw, c.ttlWithJitter()).Err()
		}
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

// Invalidate removes the cached set.
func (c *QuestionCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, questionsKey).Err()
}

func (c *QuestionCache) cached(ctx context.Context) (domain.QuestionSet, bool) {
	raw, err := c.client.Get(ctx, questionsKey).Bytes()
	if err != nil {
		return domain.QuestionSet{}, false
	}
	var set domain.QuestionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return domain.QuestionSet{}, false
	}
	return set, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
