package domain

import "errors"

var (
	// ErrQuestionNotFound is returned when a question ID does not resolve to an active question.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound is returned when a selected option label is not one of the question's options.
	ErrOptionNotFound = errors.New("invalid option")
	// ErrAttemptLimit is returned when a user has exhausted the maximum assessment attempts.
	ErrAttemptLimit = errors.New("attempt limit reached")
	// ErrProgressNotFound is returned when no progress record exists for the user.
	ErrProgressNotFound = errors.New("user progress not found")
	// ErrAccountNotFound is returned when an account lookup misses.
	ErrAccountNotFound = errors.New("account not found")
	// ErrEmailTaken is returned when registering an already-registered email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidQuestion is returned when a question fails its structural invariants.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrNonFiniteScore rejects a submission whose computed totals are NaN or infinite.
	ErrNonFiniteScore = errors.New("computed score totals are not finite")
	// ErrRevisionConflict is returned when a progress write lost an optimistic-versioning race.
	ErrRevisionConflict = errors.New("progress record was modified concurrently")
)

// Kind buckets errors so callers can tell "fix your input" from "try again later".
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindNumeric
	KindConflict
)

// KindOf classifies an error into the taxonomy above. Unrecognized errors are
// KindUnknown and should be treated as downstream/transient failures.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrOptionNotFound),
		errors.Is(err, ErrAttemptLimit),
		errors.Is(err, ErrInvalidQuestion),
		errors.Is(err, ErrEmailTaken):
		return KindValidation
	case errors.Is(err, ErrQuestionNotFound),
		errors.Is(err, ErrProgressNotFound),
		errors.Is(err, ErrAccountNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return KindUnauthorized
	case errors.Is(err, ErrNonFiniteScore):
		return KindNumeric
	case errors.Is(err, ErrRevisionConflict):
		return KindConflict
	default:
		return KindUnknown
	}
}
