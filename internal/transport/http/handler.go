package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"compliscore/internal/app"
	"compliscore/internal/auth"
	"compliscore/internal/domain"
)

// Handler exposes the REST surface over the assessment, report, and auth services.
type Handler struct {
	assessments *app.AssessmentService
	reports     *app.ReportService
	auth        *auth.Service
	questions   app.QuestionRepository
	admin       app.QuestionAdminStore
	invalidate  func() // drops the question cache after admin writes; may be nil
}

func NewHandler(assessments *app.AssessmentService, reports *app.ReportService, authSvc *auth.Service, questions app.QuestionRepository, admin app.QuestionAdminStore, invalidate func()) *Handler {
	return &Handler{
		assessments: assessments,
		reports:     reports,
		auth:        authSvc,
		questions:   questions,
		admin:       admin,
		invalidate:  invalidate,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/register", h.handleRegister)              // POST
	mux.HandleFunc("/api/auth/login", h.handleLogin)                    // POST
	mux.HandleFunc("/api/questions", h.withAuth(h.handleQuestions))     // GET
	mux.HandleFunc("/api/user/save-answer", h.withAuth(h.handleSaveAnswer))             // POST
	mux.HandleFunc("/api/user/submit-assessment", h.withAuth(h.handleSubmitAssessment)) // POST
	mux.HandleFunc("/api/user/report", h.withAuth(h.handleReport))      // GET
	mux.HandleFunc("/api/user/report/pdf", h.withAuth(h.handleReportPDF)) // GET
	mux.HandleFunc("/api/admin/questions", h.withAdmin(h.handleAdminUpsert))       // POST/PUT
	mux.HandleFunc("/api/admin/questions/", h.withAdmin(h.handleAdminQuestionOps)) // POST {id}/deactivate
	mux.HandleFunc("/api/admin/users", h.withAdmin(h.handleAdminUsers)) // GET
}

type authedHandler func(w http.ResponseWriter, r *http.Request, principal auth.Principal)

func (h *Handler) withAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		principal, err := h.auth.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r, principal)
	}
}

func (h *Handler) withAdmin(next authedHandler) http.HandlerFunc {
	return h.withAuth(func(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
		if principal.Role != domain.RoleAdmin {
			http.Error(w, "admin role required", http.StatusForbidden)
			return
		}
		next(w, r, principal)
	})
}

// POST /api/auth/register
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email    string          `json:"email"`
		Name     string          `json:"name"`
		Password string          `json:"password"`
		Audience domain.Audience `json:"audience"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := h.auth.Register(r.Context(), req.Email, req.Name, req.Password, req.Audience)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// POST /api/auth/login
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /api/questions — active questions for the caller's audience.
func (h *Handler) handleQuestions(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	questions, err := h.questions.ListQuestions(r.Context(), domain.QuestionFilter{
		Audience:   principal.Audience,
		ActiveOnly: true,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

// POST /api/user/save-answer
func (h *Handler) handleSaveAnswer(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		QuestionID    string `json:"questionId"`
		OptionLabel   string `json:"optionLabel"`
		AttemptNumber int    `json:"attemptNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.QuestionID == "" || req.OptionLabel == "" || req.AttemptNumber < 1 {
		http.Error(w, "questionId, optionLabel, and attemptNumber are required", http.StatusBadRequest)
		return
	}
	answer, err := h.assessments.SaveAnswer(r.Context(), principal.UserID, req.QuestionID, req.OptionLabel, req.AttemptNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// POST /api/user/submit-assessment
func (h *Handler) handleSubmitAssessment(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		AttemptNumber int               `json:"attemptNumber"`
		Answers       map[string]string `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.AttemptNumber < 1 || len(req.Answers) == 0 {
		http.Error(w, "attemptNumber and answers are required", http.StatusBadRequest)
		return
	}
	result, err := h.assessments.SubmitAssessment(r.Context(), principal.UserID, req.Answers, req.AttemptNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /api/user/report
func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := h.reports.Build(r.Context(), principal.UserID, principal.Name, principal.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// GET /api/user/report/pdf[?email=1]
func (h *Handler) handleReportPDF(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := h.reports.Build(r.Context(), principal.UserID, principal.Name, principal.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	pdf, err := h.reports.RenderPDF(r.Context(), data)
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("email") == "1" {
		if err := h.reports.EmailPDF(r.Context(), data, principal.Email); err != nil {
			log.Printf("email report to %s: %v", principal.Email, err)
			http.Error(w, "report generated but email delivery failed", http.StatusBadGateway)
			return
		}
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="compliance-report.pdf"`)
	_, _ = w.Write(pdf)
}

// POST/PUT /api/admin/questions
func (h *Handler) handleAdminUpsert(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var question domain.Question
	if err := json.NewDecoder(r.Body).Decode(&question); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := question.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := h.admin.UpsertQuestion(r.Context(), question); err != nil {
		writeError(w, err)
		return
	}
	h.dropCache()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": question.ID})
}

// POST /api/admin/questions/{id}/deactivate
func (h *Handler) handleAdminQuestionOps(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/questions/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "deactivate" || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.admin.DeactivateQuestion(r.Context(), parts[0]); err != nil {
		writeError(w, err)
		return
	}
	h.dropCache()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": parts[0]})
}

// GET /api/admin/users
func (h *Handler) handleAdminUsers(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accounts, err := h.auth.Accounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	// never expose password hashes
	type userView struct {
		ID       string          `json:"id"`
		Email    string          `json:"email"`
		Name     string          `json:"name"`
		Role     string          `json:"role"`
		Audience domain.Audience `json:"audience"`
	}
	views := make([]userView, 0, len(accounts))
	for _, acct := range accounts {
		views = append(views, userView{ID: acct.ID, Email: acct.Email, Name: acct.Name, Role: acct.Role, Audience: acct.Audience})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": views})
}

func (h *Handler) dropCache() {
	if h.invalidate != nil {
		h.invalidate()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses so clients can tell
// "fix your input" from "try again later".
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch domain.KindOf(err) {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindUnauthorized:
		status = http.StatusUnauthorized
	case domain.KindNumeric:
		status = http.StatusUnprocessableEntity
	case domain.KindConflict:
		status = http.StatusConflict
	default:
		log.Printf("internal error: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
