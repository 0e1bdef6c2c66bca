package app

import (
	"context"
	"errors"
	"log"
	"math"
	"sort"
	"time"

	"compliscore/internal/domain"
)

// QuestionRepository loads question content (from cache/backing store).
type QuestionRepository interface {
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
	ListQuestions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error)
}

// QuestionAdminStore mutates the question bank. Deactivation replaces hard
// deletion so historical answers stay resolvable.
type QuestionAdminStore interface {
	UpsertQuestion(ctx context.Context, q domain.Question) error
	DeactivateQuestion(ctx context.Context, id string) error
}

// ProgressStore abstracts how per-user progress documents are stored.
// SaveProgress must enforce optimistic versioning: a write whose Revision does
// not match the stored record fails with domain.ErrRevisionConflict.
type ProgressStore interface {
	GetProgress(ctx context.Context, userID string) (domain.Progress, error)
	SaveProgress(ctx context.Context, p *domain.Progress) error
}

// AssessmentService records answers and finalizes assessment attempts.
type AssessmentService struct {
	questions QuestionRepository
	progress  ProgressStore
	now       func() time.Time
}

func NewAssessmentService(questions QuestionRepository, progress ProgressStore) *AssessmentService {
	return &AssessmentService{
		questions: questions,
		progress:  progress,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewAssessmentServiceWithClock is test-only for deterministic timestamps.
func NewAssessmentServiceWithClock(questions QuestionRepository, progress ProgressStore, now func() time.Time) *AssessmentService {
	s := NewAssessmentService(questions, progress)
	s.now = now
	return s
}

// SubmissionResult reports the outcome of a full assessment submission,
// including the question IDs that were skipped under the lenient policy.
type SubmissionResult struct {
	AttemptNumber      int                    `json:"attemptNumber"`
	CategoryScores     []domain.CategoryScore `json:"categoryScores"`
	OverallPercentage  float64                `json:"overallPercentage"`
	SkippedQuestionIDs []string               `json:"skippedQuestionIds"`
}

// SaveAnswer scores and persists a single answer. Re-answering the same
// question within the same attempt overwrites the earlier answer in place.
// No state is persisted on any validation failure.
func (s *AssessmentService) SaveAnswer(ctx context.Context, userID, questionID, optionLabel string, attemptNumber int) (domain.Answer, error) {
	progress, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return domain.Answer{}, err
	}
	if progress.AssessmentAttempts >= domain.MaxAttempts {
		return domain.Answer{}, domain.ErrAttemptLimit
	}

	question, err := s.activeQuestion(ctx, questionID)
	if err != nil {
		return domain.Answer{}, err
	}
	option, ok := question.OptionByLabel(optionLabel)
	if !ok {
		return domain.Answer{}, domain.ErrOptionNotFound
	}

	answer := domain.Answer{
		QuestionID:     question.ID,
		OptionLabel:    option.Label,
		AttemptNumber:  attemptNumber,
		ScoreEarned:    option.Weight / 100 * question.Weight,
		QuestionWeight: question.Weight,
		AnsweredAt:     s.now(),
	}
	upsertAnswer(&progress, answer)

	if err := s.progress.SaveProgress(ctx, &progress); err != nil {
		return domain.Answer{}, err
	}
	return answer, nil
}

// SubmitAssessment finalizes one attempt from a questionID -> optionLabel map.
// Unresolvable question IDs and unknown option labels are skipped (and
// reported in the result) rather than aborting the submission. Category rows
// for the attempt are replaced wholesale so resubmission never duplicates.
func (s *AssessmentService) SubmitAssessment(ctx context.Context, userID string, answers map[string]string, attemptNumber int) (SubmissionResult, error) {
	progress, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return SubmissionResult{}, err
	}
	if progress.AssessmentAttempts >= domain.MaxAttempts {
		return SubmissionResult{}, domain.ErrAttemptLimit
	}

	// Sorted walk keeps category first-appearance order deterministic.
	questionIDs := make([]string, 0, len(answers))
	for id := range answers {
		questionIDs = append(questionIDs, id)
	}
	sort.Strings(questionIDs)

	var (
		skipped       []string
		scored        []domain.Answer
		categoryOrder []string
		byCategory    = make(map[string]*domain.CategoryScore)
		totalScored   float64
		totalWeighted float64
		submittedAt   = s.now()
	)

	for _, questionID := range questionIDs {
		question, err := s.activeQuestion(ctx, questionID)
		if err != nil {
			log.Printf("submit: skipping question %q for user %s: %v", questionID, userID, err)
			skipped = append(skipped, questionID)
			continue
		}
		option, ok := question.OptionByLabel(answers[questionID])
		if !ok {
			log.Printf("submit: skipping question %q for user %s: unknown option %q", questionID, userID, answers[questionID])
			skipped = append(skipped, questionID)
			continue
		}

		earned := option.Weight / 100 * question.Weight
		scored = append(scored, domain.Answer{
			QuestionID:     question.ID,
			OptionLabel:    option.Label,
			AttemptNumber:  attemptNumber,
			ScoreEarned:    earned,
			QuestionWeight: question.Weight,
			AnsweredAt:     submittedAt,
		})

		row, ok := byCategory[question.Category]
		if !ok {
			row = &domain.CategoryScore{AttemptNumber: attemptNumber, Category: question.Category}
			byCategory[question.Category] = row
			categoryOrder = append(categoryOrder, question.Category)
		}
		row.TotalScored += earned
		row.TotalWeighted += question.Weight
		row.AnsweredCount++
		totalScored += earned
		totalWeighted += question.Weight
	}

	if !isFinite(totalScored) || !isFinite(totalWeighted) {
		return SubmissionResult{}, domain.ErrNonFiniteScore
	}

	categoryScores := make([]domain.CategoryScore, 0, len(categoryOrder))
	for _, category := range categoryOrder {
		row := *byCategory[category]
		if !isFinite(row.TotalScored) || !isFinite(row.TotalWeighted) {
			return SubmissionResult{}, domain.ErrNonFiniteScore
		}
		row.Percentage = percentage(row.TotalScored, row.TotalWeighted)
		categoryScores = append(categoryScores, row)
	}
	overall := percentage(totalScored, totalWeighted)

	for _, answer := range scored {
		upsertAnswer(&progress, answer)
	}
	replaceCategoryScores(&progress, attemptNumber, categoryScores)
	progress.AssessmentHistory = append(progress.AssessmentHistory, domain.AttemptSummary{
		AttemptNumber:     attemptNumber,
		OverallPercentage: overall,
		CompletedAt:       submittedAt,
	})
	progress.AssessmentAttempts++
	progress.TotalScored = totalScored
	progress.TotalWeighted = totalWeighted
	progress.OverallPercentage = overall

	if err := s.progress.SaveProgress(ctx, &progress); err != nil {
		return SubmissionResult{}, err
	}

	return SubmissionResult{
		AttemptNumber:      attemptNumber,
		CategoryScores:     categoryScores,
		OverallPercentage:  overall,
		SkippedQuestionIDs: skipped,
	}, nil
}

// Progress exposes the stored record for reporting callers.
func (s *AssessmentService) Progress(ctx context.Context, userID string) (domain.Progress, error) {
	return s.progress.GetProgress(ctx, userID)
}

func (s *AssessmentService) loadOrCreate(ctx context.Context, userID string) (domain.Progress, error) {
	progress, err := s.progress.GetProgress(ctx, userID)
	if errors.Is(err, domain.ErrProgressNotFound) {
		return domain.Progress{UserID: userID}, nil
	}
	if err != nil {
		return domain.Progress{}, err
	}
	return progress, nil
}

func (s *AssessmentService) activeQuestion(ctx context.Context, id string) (domain.Question, error) {
	question, err := s.questions.GetQuestion(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}
	if !question.Active {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return question, nil
}

// upsertAnswer overwrites an existing answer for (question, attempt) in place,
// preserving its position, or appends a new one.
func upsertAnswer(p *domain.Progress, answer domain.Answer) {
	for i := range p.QuestionHistory {
		if p.QuestionHistory[i].QuestionID == answer.QuestionID && p.QuestionHistory[i].AttemptNumber == answer.AttemptNumber {
			p.QuestionHistory[i] = answer
			return
		}
	}
	p.QuestionHistory = append(p.QuestionHistory, answer)
}

// replaceCategoryScores drops all rows for the attempt before appending the
// fresh ones, so (attemptNumber, category) stays unique on resubmission.
func replaceCategoryScores(p *domain.Progress, attemptNumber int, rows []domain.CategoryScore) {
	kept := p.CategoryScores[:0]
	for _, row := range p.CategoryScores {
		if row.AttemptNumber != attemptNumber {
			kept = append(kept, row)
		}
	}
	p.CategoryScores = append(kept, rows...)
}

// percentage is defined as 0 when the weighted sum is 0; results are rounded
// to two decimals to match stored report values.
func percentage(scored, weighted float64) float64 {
	if weighted == 0 {
		return 0
	}
	return math.Round(scored/weighted*100*100) / 100
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
