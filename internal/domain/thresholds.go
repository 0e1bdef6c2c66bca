package domain

// MaxAttempts caps how many completed assessments a user may accumulate.
const MaxAttempts = 10

// Recommendation thresholds. A category below RecommendationCutoff produces
// a suggestion; the priority bands are fixed, not configurable.
const (
	RecommendationCutoff = 80.0
	PriorityHighBelow    = 40.0
	PriorityMediumBelow  = 60.0
)

const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// PriorityFor maps a category percentage below the cutoff to its priority band.
func PriorityFor(score float64) string {
	switch {
	case score < PriorityHighBelow:
		return PriorityHigh
	case score < PriorityMediumBelow:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Risk badge bands for the report header.
const (
	RiskLowAt    = 80.0
	RiskMediumAt = 60.0
)

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// RiskLevel maps an overall percentage to its qualitative badge.
func RiskLevel(score float64) string {
	switch {
	case score >= RiskLowAt:
		return RiskLow
	case score >= RiskMediumAt:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Benchmark is a fixed reference point rendered alongside the user's score.
// These are hard-coded reference values, not computed from real users.
type Benchmark struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Benchmarks returns the fixed comparison points in render order.
func Benchmarks() []Benchmark {
	return []Benchmark{
		{Name: "Industry Average", Score: 75},
		{Name: "Peer Organizations", Score: 68},
		{Name: "Top Performers", Score: 92},
	}
}

// FrameworkRequirement is one row of the compliance-framework checklist with
// its fixed minimum overall percentage.
type FrameworkRequirement struct {
	Framework string  `json:"framework"`
	Minimum   float64 `json:"minimum"`
}

// Frameworks returns the checklist rows in render order.
func Frameworks() []FrameworkRequirement {
	return []FrameworkRequirement{
		{Framework: "ISO 27001", Minimum: 85},
		{Framework: "GDPR", Minimum: 75},
		{Framework: "SOC 2", Minimum: 70},
		{Framework: "NIST CSF", Minimum: 80},
	}
}
