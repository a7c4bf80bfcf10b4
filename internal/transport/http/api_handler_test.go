package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func TestAPIQuizLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	defer env.server.Close()

	// Idle status.
	var status app.RunStatus
	res := env.getJSON(t, "/api/quiz/current", &status)
	if !res.Success || status.IsActive {
		t.Fatalf("expected idle status, got %+v", status)
	}

	// Students cannot start a quiz.
	res = env.postJSON(t, "/api/admin/quiz/start", map[string]any{"adminId": "u1"}, nil, http.StatusForbidden)
	if res.Success {
		t.Fatalf("expected failure envelope, got %+v", res)
	}

	var started map[string]string
	env.postJSON(t, "/api/admin/quiz/start", map[string]any{"adminId": "admin"}, &started, http.StatusOK)
	if started["sessionId"] == "" {
		t.Fatalf("expected session id, got %+v", started)
	}

	// Starting again conflicts.
	env.postJSON(t, "/api/admin/quiz/start", map[string]any{"adminId": "admin"}, nil, http.StatusConflict)

	question := env.waitForQuestion(t)

	var answer domain.AnswerResultPayload
	env.postJSON(t, "/api/quiz/answer", map[string]any{
		"userId":         "u1",
		"questionId":     question.ID,
		"selectedAnswer": 1,
	}, &answer, http.StatusOK)
	if !answer.IsCorrect || answer.Score <= 0 {
		t.Fatalf("expected scored correct answer, got %+v", answer)
	}

	env.postJSON(t, "/api/quiz/answer", map[string]any{
		"userId":         "u1",
		"questionId":     question.ID,
		"selectedAnswer": 1,
	}, nil, http.StatusConflict)

	var entries []domain.LeaderboardEntry
	env.getJSON(t, "/api/quiz/leaderboard", &entries)
	if len(entries) != 1 || entries[0].UserID != "u1" {
		t.Fatalf("unexpected leaderboard: %+v", entries)
	}

	env.postJSON(t, "/api/admin/quiz/stop", nil, nil, http.StatusOK)
	env.getJSON(t, "/api/quiz/current", &status)
	if status.IsActive {
		t.Fatalf("expected idle after stop, got %+v", status)
	}
}

func TestAPICurrentQuestionView(t *testing.T) {
	env := newAPIEnv(t)
	defer env.server.Close()

	var view app.QuestionView
	env.getJSON(t, "/api/quiz/current-question?userId=u1", &view)
	if view.HasActiveQuiz {
		t.Fatalf("expected no active quiz, got %+v", view)
	}

	env.postJSON(t, "/api/admin/quiz/start", map[string]any{"adminId": "admin"}, nil, http.StatusOK)
	question := env.waitForQuestion(t)

	env.postJSON(t, "/api/quiz/answer", map[string]any{
		"userId":         "u1",
		"questionId":     question.ID,
		"selectedAnswer": 0,
	}, nil, http.StatusOK)

	env.getJSON(t, "/api/quiz/current-question?userId=u1", &view)
	if !view.HasActiveQuiz || !view.HasAnswered {
		t.Fatalf("expected answered view, got %+v", view)
	}
}

func TestAPIQuestionAuthoring(t *testing.T) {
	env := newAPIEnv(t)
	defer env.server.Close()

	// Public listing never exposes the correct answer.
	var public []map[string]any
	env.getJSON(t, "/api/quiz/questions", &public)
	if len(public) != 1 {
		t.Fatalf("expected 1 question, got %+v", public)
	}
	if _, leaked := public[0]["correctAnswer"]; leaked {
		t.Fatalf("public listing leaked the correct answer: %+v", public[0])
	}

	// Authoring requires the admin role.
	env.postJSON(t, "/api/admin/questions", map[string]any{
		"adminId":       "u1",
		"text":          "Should not exist",
		"options":       []string{"a", "b"},
		"correctAnswer": 0,
		"timeLimit":     30,
	}, nil, http.StatusForbidden)

	// Validation rejects an out-of-range answer index.
	env.postJSON(t, "/api/admin/questions", map[string]any{
		"adminId":       "admin",
		"text":          "Broken",
		"options":       []string{"a", "b"},
		"correctAnswer": 5,
		"timeLimit":     30,
	}, nil, http.StatusBadRequest)

	var created domain.Question
	env.postJSON(t, "/api/admin/questions", map[string]any{
		"adminId":       "admin",
		"text":          "What is the capital of France?",
		"options":       []string{"London", "Paris"},
		"correctAnswer": 1,
		"timeLimit":     30,
	}, &created, http.StatusOK)
	if created.ID == "" || !created.Active {
		t.Fatalf("expected active question with id, got %+v", created)
	}

	// The cache was invalidated, so the new question is immediately listable.
	env.getJSON(t, "/api/quiz/questions", &public)
	if len(public) != 2 {
		t.Fatalf("expected 2 questions after create, got %d", len(public))
	}

	req, _ := http.NewRequest(http.MethodDelete, env.server.URL+"/api/admin/questions/"+created.ID+"?adminId=admin", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 delete, got %d", resp.StatusCode)
	}

	env.getJSON(t, "/api/quiz/questions", &public)
	if len(public) != 1 {
		t.Fatalf("expected 1 question after delete, got %d", len(public))
	}
}

type apiEnv struct {
	runner *app.QuizRunner
	server *httptest.Server
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	ctx := context.Background()

	store := memory.NewDocumentStore()
	users := []domain.User{
		{ID: "admin", Username: "quizmaster", Role: domain.RoleAdmin},
		{ID: "u1", Username: "alice", Role: "student"},
	}
	for _, u := range users {
		if _, err := store.Create(ctx, app.CollectionUsers, u.Fields(), u.ID); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	seedQuestion := domain.Question{
		Text:             "What is 2 + 2?",
		Options:          []string{"3", "4", "5"},
		CorrectAnswer:    1,
		TimeLimitSeconds: 60,
		Active:           true,
	}
	if _, err := store.Create(ctx, app.CollectionQuestions, seedQuestion.Fields(), "q1"); err != nil {
		t.Fatalf("seed question: %v", err)
	}

	catalog := memory.NewQuestionCache(app.NewStoreQuestionLoader(store), time.Minute)
	hub := NewHub()
	runner := app.NewQuizRunner(store, catalog, hub, app.RunnerConfig{
		LeadIn:          5 * time.Millisecond,
		GracePeriod:     5 * time.Millisecond,
		LeaderboardSize: 10,
	})
	apiHandler := NewAPIHandler(runner, store, catalog, catalog)

	mux := http.NewServeMux()
	apiHandler.Register(mux)
	server := httptest.NewServer(mux)

	t.Cleanup(func() { _ = runner.Stop(context.Background()) })
	return &apiEnv{runner: runner, server: server}
}

func (e *apiEnv) getJSON(t *testing.T, path string, out any) envelope {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	defer resp.Body.Close()
	return decodeEnvelope(t, resp, out)
}

func (e *apiEnv) postJSON(t *testing.T, path string, body any, out any, wantStatus int) envelope {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("post %s: expected status %d, got %d", path, wantStatus, resp.StatusCode)
	}
	return decodeEnvelope(t, resp, out)
}

func (e *apiEnv) waitForQuestion(t *testing.T) *app.ActiveQuestion {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var view app.QuestionView
		e.getJSON(t, "/api/quiz/current-question?userId=u1", &view)
		if view.Question != nil {
			return view.Question
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for live question")
	return nil
}

func decodeEnvelope(t *testing.T, resp *http.Response, out any) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env
}
