package report

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"time"

	"compliscore/internal/domain"
)

//go:embed report.html
var reportTemplate string

// ErrMissingOverall rejects rendering when the mandatory overall score is absent.
var ErrMissingOverall = errors.New("report data is missing the overall score")

// HistoryRow is one attempt in the report's history table.
type HistoryRow struct {
	AttemptNumber int       `json:"attemptNumber"`
	Percentage    float64   `json:"overallPercentage"`
	Delta         float64   `json:"delta"`
	CompletedAt   time.Time `json:"completedAt"`
}

// FrameworkStatus is one checklist row: a framework's fixed minimum and
// whether the user's overall score meets it.
type FrameworkStatus struct {
	Framework string  `json:"framework"`
	Minimum   float64 `json:"minimum"`
	Met       bool    `json:"met"`
}

// Data is everything the report template needs. One structure serves
// on-screen display, PDF export, and email attachment.
type Data struct {
	Name            string                    `json:"name"`
	Email           string                    `json:"email"`
	GeneratedAt     time.Time                 `json:"generatedAt"`
	Overall         *float64                  `json:"overallPercentage"`
	Previous        float64                   `json:"previousPercentage"`
	Delta           float64                   `json:"delta"`
	HasAttempts     bool                      `json:"hasAttempts"`
	Categories      []domain.CategoryStanding `json:"categoryScores"`
	Recommendations []domain.Recommendation   `json:"recommendations"`
	History         []HistoryRow              `json:"assessmentHistory"`
	Benchmarks      []domain.Benchmark        `json:"benchmarks"`
	Frameworks      []FrameworkStatus         `json:"frameworks"`
}

// Renderer turns report data into a self-contained HTML document.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"pct":       func(v float64) string { return fmt.Sprintf("%.1f", v) },
		"signed":    func(v float64) string { return fmt.Sprintf("%+.1f", v) },
		"riskLevel": domain.RiskLevel,
		"deref": func(v *float64) float64 {
			if v == nil {
				return 0
			}
			return *v
		},
	}).Parse(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// HTML renders the document. Missing optional fields fall back to placeholder
// text inside the template; a missing overall score is a hard error.
func (r *Renderer) HTML(data Data) ([]byte, error) {
	if data.Overall == nil {
		return nil, ErrMissingOverall
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}
