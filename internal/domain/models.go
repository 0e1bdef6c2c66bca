package domain

import (
	"fmt"
	"time"
)

// Audience marks which kind of user a question targets.
type Audience string

const (
	AudienceIndividual Audience = "individual"
	AudienceCompany    Audience = "company"
	AudienceBoth       Audience = "both"
)

// Valid reports whether the audience value is one of the known constants.
func (a Audience) Valid() bool {
	switch a {
	case AudienceIndividual, AudienceCompany, AudienceBoth:
		return true
	}
	return false
}

// Includes reports whether a question with this audience applies to the given user audience.
func (a Audience) Includes(user Audience) bool {
	return a == AudienceBoth || a == user
}

// Option is one answer choice on a question. Weight is the percentage of the
// question's weight earned by selecting it, in [0, 100].
type Option struct {
	Label  string  `json:"label"`
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

// Question is a weighted multiple-choice question tagged with a compliance category.
type Question struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Category string   `json:"complianceCategory"`
	Weight   float64  `json:"weight"`
	Audience Audience `json:"targetAudience"`
	Active   bool     `json:"active"`
	Version  int      `json:"version"`
	Options  []Option `json:"options"`
}

// Validate checks the structural invariants: positive weight, a known
// audience, at least two options, and option weights within [0, 100].
func (q Question) Validate() error {
	if q.ID == "" || q.Text == "" || q.Category == "" {
		return fmt.Errorf("%w: id, text, and complianceCategory are required", ErrInvalidQuestion)
	}
	if q.Weight <= 0 {
		return fmt.Errorf("%w: weight must be positive", ErrInvalidQuestion)
	}
	if !q.Audience.Valid() {
		return fmt.Errorf("%w: unknown targetAudience %q", ErrInvalidQuestion, q.Audience)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("%w: at least two options required", ErrInvalidQuestion)
	}
	seen := make(map[string]bool, len(q.Options))
	for _, opt := range q.Options {
		if opt.Label == "" || seen[opt.Label] {
			return fmt.Errorf("%w: option labels must be unique and non-empty", ErrInvalidQuestion)
		}
		seen[opt.Label] = true
		if opt.Weight < 0 || opt.Weight > 100 {
			return fmt.Errorf("%w: option %q weight %v outside [0,100]", ErrInvalidQuestion, opt.Label, opt.Weight)
		}
	}
	return nil
}

// OptionByLabel resolves an answer choice by its label.
func (q Question) OptionByLabel(label string) (Option, bool) {
	for _, opt := range q.Options {
		if opt.Label == label {
			return opt, true
		}
	}
	return Option{}, false
}

// QuestionFilter selects questions by audience and lifecycle state.
type QuestionFilter struct {
	Audience   Audience
	ActiveOnly bool
}

// Matches reports whether a question passes the filter.
func (f QuestionFilter) Matches(q Question) bool {
	if f.ActiveOnly && !q.Active {
		return false
	}
	if f.Audience != "" && !q.Audience.Includes(f.Audience) {
		return false
	}
	return true
}

// Answer records one scored response inside an attempt.
type Answer struct {
	QuestionID     string    `json:"questionId"`
	OptionLabel    string    `json:"selectedOptionLabel"`
	AttemptNumber  int       `json:"attemptNumber"`
	ScoreEarned    float64   `json:"scoreEarned"`
	QuestionWeight float64   `json:"questionWeight"`
	AnsweredAt     time.Time `json:"answeredAt"`
}

// CategoryScore is one per-category roll-up row for a single attempt.
type CategoryScore struct {
	AttemptNumber int     `json:"attemptNumber"`
	Category      string  `json:"complianceCategory"`
	TotalScored   float64 `json:"totalScored"`
	TotalWeighted float64 `json:"totalWeighted"`
	Percentage    float64 `json:"percentageScore"`
	AnsweredCount int     `json:"answeredCount"`
}

// AttemptSummary is one row of assessment history.
type AttemptSummary struct {
	AttemptNumber     int       `json:"attemptNumber"`
	OverallPercentage float64   `json:"overallPercentage"`
	CompletedAt       time.Time `json:"completedAt"`
}

// Progress is the per-user document holding all assessment state. It is read
// and written whole; Revision implements optimistic versioning on writes.
type Progress struct {
	UserID             string           `json:"userId"`
	AssessmentAttempts int              `json:"assessmentAttempts"`
	QuestionHistory    []Answer         `json:"questionHistory"`
	CategoryScores     []CategoryScore  `json:"categoryScores"`
	AssessmentHistory  []AttemptSummary `json:"assessmentHistory"`
	TotalScored        float64          `json:"totalScore"`
	TotalWeighted      float64          `json:"totalPossibleScore"`
	OverallPercentage  float64          `json:"overallPercentage"`
	Revision           int64            `json:"-"`
}

// Clone returns a deep copy so callers can mutate freely without aliasing
// slices held by an in-process store.
func (p Progress) Clone() Progress {
	out := p
	out.QuestionHistory = append([]Answer(nil), p.QuestionHistory...)
	out.CategoryScores = append([]CategoryScore(nil), p.CategoryScores...)
	out.AssessmentHistory = append([]AttemptSummary(nil), p.AssessmentHistory...)
	return out
}

// CategoryStanding is a read-model row: one category's percentage in a snapshot.
type CategoryStanding struct {
	Category   string  `json:"complianceCategory"`
	Percentage float64 `json:"percentageScore"`
}

// Recommendation is one improvement suggestion derived from a weak category.
type Recommendation struct {
	Category    string `json:"category"`
	Issue       string `json:"issue"`
	Description string `json:"description"`
	Action      string `json:"action"`
	Priority    string `json:"priority"`
}

// Account is a registered user able to take assessments or administer them.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	PassHash  []byte    `json:"passHash"`
	Role      string    `json:"role"`
	Audience  Audience  `json:"audience"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
