package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// questionInvalidator is what the facade needs from the question cache after
// authoring changes.
type questionInvalidator interface {
	Invalidate()
}

// APIHandler is the synchronous facade mirroring runner operations for
// clients that cannot hold a persistent connection. The answer path shares
// the runner's validation and scoring with the websocket path.
type APIHandler struct {
	runner    *app.QuizRunner
	store     app.DocumentStore
	questions app.QuestionRepository
	cache     questionInvalidator
}

func NewAPIHandler(runner *app.QuizRunner, store app.DocumentStore, questions app.QuestionRepository, cache questionInvalidator) *APIHandler {
	return &APIHandler{runner: runner, store: store, questions: questions, cache: cache}
}

// Register mounts the facade routes.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/quiz/current", h.handleStatus)
	mux.HandleFunc("/api/quiz/current-question", h.handleCurrentQuestion)
	mux.HandleFunc("/api/quiz/answer", h.handleAnswer)
	mux.HandleFunc("/api/quiz/leaderboard", h.handleLeaderboard)
	mux.HandleFunc("/api/quiz/questions", h.handlePublicQuestions)
	mux.HandleFunc("/api/admin/quiz/start", h.handleStart)
	mux.HandleFunc("/api/admin/quiz/stop", h.handleStop)
	mux.HandleFunc("/api/admin/questions", h.handleAdminQuestions)
	mux.HandleFunc("/api/admin/questions/", h.handleAdminQuestionByID)
}

type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeSuccess(w http.ResponseWriter, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message})
}

// statusFor maps runner errors onto HTTP statuses. Rejections are client
// errors; only unclassified store failures surface as 500s.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrQuizAlreadyActive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDuplicateAnswer):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAdminRequired):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoQuestionsAvailable),
		errors.Is(err, domain.ErrNoActiveSession),
		errors.Is(err, domain.ErrNoActiveQuestion),
		errors.Is(err, domain.ErrStaleQuestion),
		errors.Is(err, domain.ErrTimeExceeded),
		errors.Is(err, domain.ErrNotJoined),
		errors.Is(err, domain.ErrInvalidQuestion):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *APIHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeSuccess(w, h.runner.Status(), "")
}

func (h *APIHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		AdminID string `json:"adminId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.AdminID == "" {
		writeError(w, http.StatusBadRequest, "adminId is required")
		return
	}
	if err := h.requireAdmin(r.Context(), body.AdminID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	sessionID, err := h.runner.Start(r.Context(), body.AdminID)
	if err != nil {
		log.Printf("start quiz: %v", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeSuccess(w, map[string]any{"sessionId": sessionID}, "Quiz started successfully")
}

func (h *APIHandler) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := h.runner.Stop(r.Context()); err != nil {
		log.Printf("stop quiz: %v", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeSuccess(w, nil, "Quiz stopped successfully")
}

func (h *APIHandler) handleCurrentQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	view, err := h.runner.CurrentQuestion(r.Context(), userID)
	if err != nil {
		log.Printf("current question: %v", err)
		writeError(w, statusFor(err), "failed to get current question")
		return
	}
	writeSuccess(w, view, "")
}

func (h *APIHandler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		UserID         string `json:"userId"`
		QuestionID     string `json:"questionId"`
		SelectedAnswer *int   `json:"selectedAnswer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil ||
		body.UserID == "" || body.QuestionID == "" || body.SelectedAnswer == nil {
		writeError(w, http.StatusBadRequest, "userId, questionId, and selectedAnswer are required")
		return
	}

	result, err := h.runner.SubmitAnswerByUser(r.Context(), body.UserID, body.QuestionID, *body.SelectedAnswer)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeSuccess(w, result, "Answer submitted successfully")
}

func (h *APIHandler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries, err := h.runner.CurrentLeaderboard(r.Context())
	if err != nil {
		log.Printf("leaderboard: %v", err)
		writeError(w, statusFor(err), "failed to get leaderboard")
		return
	}
	if entries == nil {
		writeSuccess(w, []domain.LeaderboardEntry{}, "No active quiz session")
		return
	}
	writeSuccess(w, entries, "")
}

// publicQuestion is the client-safe projection, no correct answer.
type publicQuestion struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Options   []string `json:"options"`
	TimeLimit int      `json:"timeLimit"`
}

func (h *APIHandler) handlePublicQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	questions, err := h.questions.ActiveQuestions(r.Context())
	if err != nil {
		log.Printf("list questions: %v", err)
		writeError(w, statusFor(err), "failed to retrieve questions")
		return
	}
	out := make([]publicQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, publicQuestion{
			ID:        q.ID,
			Text:      q.Text,
			Options:   q.Options,
			TimeLimit: q.TimeLimitSeconds,
		})
	}
	writeSuccess(w, out, "")
}

func (h *APIHandler) handleAdminQuestions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if err := h.requireAdmin(r.Context(), r.URL.Query().Get("adminId")); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		docs, err := h.store.List(r.Context(), app.CollectionQuestions, nil, app.ListOptions{})
		if err != nil {
			log.Printf("list questions: %v", err)
			writeError(w, statusFor(err), "failed to retrieve questions")
			return
		}
		questions := make([]domain.Question, 0, len(docs))
		for _, doc := range docs {
			questions = append(questions, domain.QuestionFromFields(doc.ID, doc.Fields))
		}
		writeSuccess(w, questions, "")

	case http.MethodPost:
		var body struct {
			AdminID          string   `json:"adminId"`
			Text             string   `json:"text"`
			Options          []string `json:"options"`
			CorrectAnswer    int      `json:"correctAnswer"`
			TimeLimitSeconds int      `json:"timeLimit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid question payload")
			return
		}
		if err := h.requireAdmin(r.Context(), body.AdminID); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		question := domain.Question{
			Text:             body.Text,
			Options:          body.Options,
			CorrectAnswer:    body.CorrectAnswer,
			TimeLimitSeconds: body.TimeLimitSeconds,
			Active:           true,
		}
		if err := question.Validate(); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		doc, err := h.store.Create(r.Context(), app.CollectionQuestions, question.Fields(), "")
		if err != nil {
			log.Printf("create question: %v", err)
			writeError(w, statusFor(err), "failed to create question")
			return
		}
		h.cache.Invalidate()
		question.ID = doc.ID
		writeSuccess(w, question, "Question created")

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *APIHandler) handleAdminQuestionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/admin/questions/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "question id is required")
		return
	}
	if err := h.requireAdmin(r.Context(), r.URL.Query().Get("adminId")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if err := h.store.Delete(r.Context(), app.CollectionQuestions, id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.cache.Invalidate()
	writeSuccess(w, nil, "Question deleted")
}

func (h *APIHandler) requireAdmin(ctx context.Context, adminID string) error {
	if adminID == "" {
		return domain.ErrAdminRequired
	}
	doc, err := h.store.Get(ctx, app.CollectionUsers, adminID)
	if err != nil {
		return err
	}
	if domain.UserFromFields(doc.ID, doc.Fields).Role != domain.RoleAdmin {
		return domain.ErrAdminRequired
	}
	return nil
}
