package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"compliscore/internal/domain"
	"compliscore/internal/report"
)

// PDFExporter renders HTML into a PDF buffer.
type PDFExporter interface {
	Export(ctx context.Context, html []byte) ([]byte, error)
}

// Mailer delivers a rendered report. Delivery is fire-and-forget beyond the
// immediate error.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string, attachment []byte, filename string) error
}

// ReportService assembles report data from a progress record and drives the
// render/export/email pipeline.
type ReportService struct {
	progress ProgressStore
	renderer *report.Renderer
	exporter PDFExporter
	mailer   Mailer
	now      func() time.Time
}

func NewReportService(progress ProgressStore, renderer *report.Renderer, exporter PDFExporter, mailer Mailer) *ReportService {
	return &ReportService{
		progress: progress,
		renderer: renderer,
		exporter: exporter,
		mailer:   mailer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Build produces the full report read-model for a user. A user with no
// progress record gets the empty-state report, never an error.
func (s *ReportService) Build(ctx context.Context, userID, name, email string) (report.Data, error) {
	progress, err := s.progress.GetProgress(ctx, userID)
	if errors.Is(err, domain.ErrProgressNotFound) {
		progress = domain.Progress{UserID: userID}
	} else if err != nil {
		return report.Data{}, err
	}

	overall := progress.OverallPercentage
	data := report.Data{
		Name:            name,
		Email:           email,
		GeneratedAt:     s.now(),
		Overall:         &overall,
		Delta:           ScoreDelta(progress),
		HasAttempts:     len(progress.AssessmentHistory) > 0,
		Categories:      LatestSnapshot(progress),
		Recommendations: Recommendations(LatestSnapshot(progress)),
		Benchmarks:      domain.Benchmarks(),
	}

	history := make([]report.HistoryRow, 0, len(progress.AssessmentHistory))
	prev := 0.0
	for i, row := range progress.AssessmentHistory {
		delta := 0.0
		if i > 0 {
			delta = row.OverallPercentage - prev
		}
		history = append(history, report.HistoryRow{
			AttemptNumber: row.AttemptNumber,
			Percentage:    row.OverallPercentage,
			Delta:         delta,
			CompletedAt:   row.CompletedAt,
		})
		prev = row.OverallPercentage
	}
	data.History = history
	if n := len(history); n >= 2 {
		data.Previous = history[n-2].Percentage
	}

	frameworks := domain.Frameworks()
	statuses := make([]report.FrameworkStatus, 0, len(frameworks))
	for _, fw := range frameworks {
		statuses = append(statuses, report.FrameworkStatus{
			Framework: fw.Framework,
			Minimum:   fw.Minimum,
			Met:       overall >= fw.Minimum,
		})
	}
	data.Frameworks = statuses
	return data, nil
}

// RenderPDF renders the HTML document and prints it to PDF.
func (s *ReportService) RenderPDF(ctx context.Context, data report.Data) ([]byte, error) {
	html, err := s.renderer.HTML(data)
	if err != nil {
		return nil, err
	}
	if s.exporter == nil {
		return nil, errors.New("pdf exporter not configured")
	}
	return s.exporter.Export(ctx, html)
}

// EmailPDF mails the rendered PDF to the given address.
func (s *ReportService) EmailPDF(ctx context.Context, data report.Data, to string) error {
	if s.mailer == nil {
		return errors.New("mailer not configured")
	}
	pdf, err := s.RenderPDF(ctx, data)
	if err != nil {
		return err
	}
	subject := "Your compliance assessment report"
	body := fmt.Sprintf("<p>Hi %s,</p><p>Your latest compliance assessment report is attached.</p>", data.Name)
	return s.mailer.Send(ctx, to, subject, body, pdf, "compliance-report.pdf")
}
