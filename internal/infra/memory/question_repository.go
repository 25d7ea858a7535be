package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"reading-quiz-service/internal/app"
	"reading-quiz-service/internal/domain"
)

// StaticQuestionRepository serves fixed collections (useful for tests/demos).
type StaticQuestionRepository struct {
	set domain.QuestionSet
}

func NewStaticQuestionRepository(set domain.QuestionSet) *StaticQuestionRepository {
	return &StaticQuestionRepository{set: set}
}

func (r *StaticQuestionRepository) MultipleChoice(context.Context) ([]domain.MultipleChoiceItem, error) {
	return r.set.MultipleChoice, nil
}

func (r *StaticQuestionRepository) FreeText(context.Context) ([]domain.FreeTextItem, error) {
	return r.set.FreeText, nil
}

func (r *StaticQuestionRepository) Audio(context.Context) ([]domain.AudioItem, error) {
	return r.set.Audio, nil
}

// QuestionCache keeps the loaded question set with a TTL to avoid repeated DB hits.
type QuestionCache struct {
	source app.QuestionSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	set       domain.QuestionSet
	expiresAt time.Time
}

func NewQuestionCache(source app.QuestionSource, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) LoadQuestions(ctx context.Context) (domain.QuestionSet, error) {
	if set, ok := c.cached(c.clock()); ok {
		return set, nil
	}

	result, err, _ := c.sf.Do("questions", func() (interface{}, error) {
		now := c.clock()
		if set, ok := c.cached(now); ok {
			return set, nil
		}

		set, err := c.source.LoadQuestions(ctx)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		c.mu.Lock()
		c.set = set
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

// Invalidate drops the cached set, e.g. after seeding new questions.
func (c *QuestionCache) Invalidate() {
	c.mu.Lock()
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *QuestionCache) cached(now time.Time) (domain.QuestionSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.expiresAt.After(now) {
		return c.set, true
	}
	return domain.QuestionSet{}, false
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
