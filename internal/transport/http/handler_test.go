package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"compliscore/internal/app"
	"compliscore/internal/auth"
	"compliscore/internal/domain"
	"compliscore/internal/infra/memory"
	"compliscore/internal/report"
	transport "compliscore/internal/transport/http"
)

type stubExporter struct{}

func (stubExporter) Export(_ context.Context, html []byte) ([]byte, error) {
	return append([]byte("%PDF-stub\n"), html...), nil
}

type stubMailer struct {
	sent []string
	fail bool
}

func (m *stubMailer) Send(_ context.Context, to, _, _ string, _ []byte, _ string) error {
	if m.fail {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, to)
	return nil
}

type testEnv struct {
	server *httptest.Server
	auth   *auth.Service
	mailer *stubMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	loader := memory.NewStaticQuestionLoader(bank())
	questions := memory.NewQuestionRepository(loader, time.Minute)
	progress := memory.NewProgressStore()
	accounts := memory.NewAccountStore()

	authSvc := auth.NewService(accounts, []byte("test-secret"), time.Hour)
	assessments := app.NewAssessmentService(questions, progress)

	renderer, err := report.NewRenderer()
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	mailer := &stubMailer{}
	reports := app.NewReportService(progress, renderer, stubExporter{}, mailer)

	handler := transport.NewHandler(assessments, reports, authSvc, questions, loader, questions.Invalidate)
	mux := http.NewServeMux()
	handler.Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &testEnv{server: server, auth: authSvc, mailer: mailer}
}

func bank() []domain.Question {
	opts := []domain.Option{
		{Label: "a", Text: "always", Weight: 100},
		{Label: "b", Text: "sometimes", Weight: 50},
		{Label: "c", Text: "never", Weight: 0},
	}
	return []domain.Question{
		{ID: "q1", Text: "Do you use a password manager?", Category: "Password Management", Weight: 10, Audience: domain.AudienceBoth, Active: true, Version: 1, Options: opts},
		{ID: "q2", Text: "Do you verify senders?", Category: "Phishing Awareness", Weight: 8, Audience: domain.AudienceIndividual, Active: true, Version: 1, Options: opts},
		{ID: "q3", Text: "Is customer data encrypted?", Category: "Data Protection", Weight: 12, Audience: domain.AudienceCompany, Active: true, Version: 1, Options: opts},
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, out.Bytes()
}

func (e *testEnv) registerUser(t *testing.T, email string, audience domain.Audience) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email": email, "name": "Tester", "password": "pw123456", "audience": audience,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d: %s", resp.StatusCode, body)
	}
	var result auth.Result
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode register result: %v", err)
	}
	return result.Token
}

func TestAssessmentFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "alice@example.com", domain.AudienceIndividual)

	// Question listing is scoped to the caller's audience.
	resp, body := env.do(t, http.MethodGet, "/api/questions", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("questions status %d: %s", resp.StatusCode, body)
	}
	var listing struct {
		Questions []domain.Question `json:"questions"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		t.Fatalf("decode questions: %v", err)
	}
	if len(listing.Questions) != 2 {
		t.Fatalf("expected q1 and q2 for individuals, got %+v", listing.Questions)
	}

	resp, body = env.do(t, http.MethodPost, "/api/user/save-answer", token, map[string]any{
		"questionId": "q1", "optionLabel": "b", "attemptNumber": 1,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save-answer status %d: %s", resp.StatusCode, body)
	}
	var answer domain.Answer
	if err := json.Unmarshal(body, &answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if answer.ScoreEarned != 5 {
		t.Fatalf("expected 5 points for 50%% of weight 10, got %v", answer.ScoreEarned)
	}

	resp, body = env.do(t, http.MethodPost, "/api/user/submit-assessment", token, map[string]any{
		"attemptNumber": 1,
		"answers":       map[string]string{"q1": "a", "q2": "b", "ghost": "a"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status %d: %s", resp.StatusCode, body)
	}
	var result app.SubmissionResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode submission: %v", err)
	}
	if result.AttemptNumber != 1 {
		t.Fatalf("expected attempt 1, got %d", result.AttemptNumber)
	}
	// 10 of 10 + 4 of 8 = 14/18
	if result.OverallPercentage != 77.78 {
		t.Fatalf("expected overall 77.78, got %v", result.OverallPercentage)
	}
	if len(result.SkippedQuestionIDs) != 1 || result.SkippedQuestionIDs[0] != "ghost" {
		t.Fatalf("expected ghost to be reported as skipped, got %v", result.SkippedQuestionIDs)
	}

	resp, body = env.do(t, http.MethodGet, "/api/user/report", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report status %d: %s", resp.StatusCode, body)
	}
	var data report.Data
	if err := json.Unmarshal(body, &data); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if !data.HasAttempts || data.Overall == nil || *data.Overall != 77.78 {
		t.Fatalf("unexpected report data %+v", data)
	}
	if len(data.Recommendations) != 1 || data.Recommendations[0].Category != "Phishing Awareness" {
		t.Fatalf("expected a phishing recommendation, got %+v", data.Recommendations)
	}
}

func TestReportPDFEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "alice@example.com", domain.AudienceIndividual)

	resp, body := env.do(t, http.MethodGet, "/api/user/report/pdf", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pdf status %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("expected application/pdf, got %q", ct)
	}
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		t.Fatalf("expected pdf bytes, got %q", body[:10])
	}

	resp, _ = env.do(t, http.MethodGet, "/api/user/report/pdf?email=1", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pdf with email status %d", resp.StatusCode)
	}
	if len(env.mailer.sent) != 1 || env.mailer.sent[0] != "alice@example.com" {
		t.Fatalf("expected report mailed to alice, got %v", env.mailer.sent)
	}

	env.mailer.fail = true
	resp, _ = env.do(t, http.MethodGet, "/api/user/report/pdf?email=1", token, nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 when mail delivery fails, got %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/questions", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/api/questions", "garbage", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", resp.StatusCode)
	}
}

func TestAdminGate(t *testing.T) {
	env := newTestEnv(t)
	userToken := env.registerUser(t, "user@example.com", domain.AudienceCompany)

	resp, _ := env.do(t, http.MethodGet, "/api/admin/users", userToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", resp.StatusCode)
	}

	adminRes, err := env.auth.RegisterAdmin(context.Background(), "ops@example.com", "Ops", "pw123456")
	if err != nil {
		t.Fatalf("register admin: %v", err)
	}
	adminToken := adminRes.Token

	resp, body := env.do(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin users status %d: %s", resp.StatusCode, body)
	}
	if bytes.Contains(body, []byte("passHash")) || bytes.Contains(body, []byte("$2a$")) {
		t.Fatalf("admin listing leaks password material: %s", body)
	}

	// Upsert a new question, then confirm the cache was dropped and users see it.
	newQuestion := domain.Question{
		ID: "q4", Text: "Do you run access reviews?", Category: "Access Control", Weight: 6,
		Audience: domain.AudienceBoth, Active: true,
		Options: []domain.Option{
			{Label: "a", Text: "quarterly", Weight: 100},
			{Label: "b", Text: "never", Weight: 0},
		},
	}
	resp, body = env.do(t, http.MethodPost, "/api/admin/questions", adminToken, newQuestion)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert status %d: %s", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/questions", userToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("questions status %d", resp.StatusCode)
	}
	if !bytes.Contains(body, []byte(`"q4"`)) {
		t.Fatalf("expected new question visible after upsert: %s", body)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/admin/questions/q4/deactivate", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deactivate status %d", resp.StatusCode)
	}
	resp, body = env.do(t, http.MethodGet, "/api/questions", userToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("questions status %d", resp.StatusCode)
	}
	if bytes.Contains(body, []byte(`"q4"`)) {
		t.Fatalf("deactivated question still listed: %s", body)
	}
}

func TestValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "alice@example.com", domain.AudienceIndividual)

	resp, _ := env.do(t, http.MethodPost, "/api/user/save-answer", token, map[string]any{
		"questionId": "", "optionLabel": "a", "attemptNumber": 1,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing questionId, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/user/save-answer", token, map[string]any{
		"questionId": "missing", "optionLabel": "a", "attemptNumber": 1,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown question, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/user/save-answer", token, map[string]any{
		"questionId": "q1", "optionLabel": "z", "attemptNumber": 1,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid option, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "alice@example.com", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad credentials, got %d", resp.StatusCode)
	}
}

func TestAttemptLimitOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "alice@example.com", domain.AudienceIndividual)

	for attempt := 1; attempt <= domain.MaxAttempts; attempt++ {
		resp, body := env.do(t, http.MethodPost, "/api/user/submit-assessment", token, map[string]any{
			"attemptNumber": attempt,
			"answers":       map[string]string{"q1": "a"},
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("attempt %d status %d: %s", attempt, resp.StatusCode, body)
		}
	}

	resp, body := env.do(t, http.MethodPost, "/api/user/submit-assessment", token, map[string]any{
		"attemptNumber": domain.MaxAttempts + 1,
		"answers":       map[string]string{"q1": "a"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 past the attempt cap, got %d: %s", resp.StatusCode, body)
	}
	var errBody struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errBody); err != nil || errBody.Error == "" {
		t.Fatalf("expected a json error payload, got %s", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "alice@example.com", domain.AudienceIndividual)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/user/save-answer"},
		{http.MethodDelete, "/api/user/submit-assessment"},
		{http.MethodPost, "/api/user/report"},
	} {
		resp, _ := env.do(t, tc.method, tc.path, token, nil)
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: expected 405, got %d", tc.method, tc.path, resp.StatusCode)
		}
	}
}
