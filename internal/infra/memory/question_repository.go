package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"compliscore/internal/domain"
)

// QuestionLoader fetches the full question bank from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionRepository caches the question bank with TTL to avoid repeated
// backing-store hits.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	cache     map[string]domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	bank, err := r.bank(ctx)
	if err != nil {
		return domain.Question{}, err
	}
	question, ok := bank[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return question, nil
}

func (r *QuestionRepository) ListQuestions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	bank, err := r.bank(ctx)
	if err != nil {
		return nil, err
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

// Invalidate drops the cached bank so the next read reloads.
func (r *QuestionRepository) Invalidate() {
	r.mu.Lock()
	r.cache = nil
	r.mu.Unlock()
}

func (r *QuestionRepository) bank(ctx context.Context) (map[string]domain.Question, error) {
	now := r.clock()

	r.mu.RLock()
	if r.cache != nil && r.expiresAt.After(now) {
		cached := r.cache
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do("bank", func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if r.cache != nil && r.expiresAt.After(now) {
			cached := r.cache
			r.mu.RUnlock()
			return cached, nil
		}
		r.mu.RUnlock()

		questions, err := r.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}
		bank := make(map[string]domain.Question, len(questions))
		for _, question := range questions {
			bank[question.ID] = question
		}

		r.mu.Lock()
		r.cache = bank
		r.expiresAt = now.Add(r.ttlWithJitter())
		r.mu.Unlock()
		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]domain.Question), nil
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a mutable in-memory bank used for dev mode and tests.
// It doubles as the admin store when no database is configured.
type StaticQuestionLoader struct {
	mu        sync.RWMutex
	questions map[string]domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	bank := make(map[string]domain.Question, len(questions))
	for _, question := range questions {
		bank[question.ID] = question
	}
	return &StaticQuestionLoader{questions: bank}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Question, 0, len(l.questions))
	for _, question := range l.questions {
		out = append(out, question)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *StaticQuestionLoader) UpsertQuestion(_ context.Context, q domain.Question) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.questions[q.ID]; ok {
		q.Version = existing.Version + 1
	} else if q.Version == 0 {
		q.Version = 1
	}
	l.questions[q.ID] = q
	return nil
}

func (l *StaticQuestionLoader) DeactivateQuestion(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	question, ok := l.questions[id]
	if !ok {
		return domain.ErrQuestionNotFound
	}
	question.Active = false
	l.questions[id] = question
	return nil
}
