package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func TestWebSocketAnswerFlow(t *testing.T) {
	env := newWSEnv(t)
	server := env.server
	defer server.Close()

	conn := dialWS(t, server)
	defer conn.Close()

	join := map[string]any{
		"type":    "join-quiz",
		"payload": map[string]any{"userId": "u1"},
	}
	if err := conn.WriteJSON(join); err != nil {
		t.Fatalf("write join: %v", err)
	}

	// Joining is silent; give the server a moment to register before start.
	waitForParticipants(t, env.runner, 1)

	if _, err := env.runner.Start(context.Background(), "admin"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	msgType, _ := readNext(conn, t, "quiz-started")
	if msgType != "quiz-started" {
		t.Fatalf("expected quiz-started, got %s", msgType)
	}
	_, question := readNext(conn, t, "new-question")
	questionID, _ := question["id"].(string)
	if questionID == "" {
		t.Fatalf("expected question id, got %+v", question)
	}

	answer := map[string]any{
		"type": "submit-answer",
		"payload": map[string]any{
			"questionId":     questionID,
			"selectedAnswer": 1,
		},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	resultSeen := false
	leaderboardSeen := false
	for i := 0; i < 3; i++ {
		typ, payload := readNext(conn, t, "")
		switch typ {
		case "answer-result":
			resultSeen = true
			if correct, _ := payload["isCorrect"].(bool); !correct {
				t.Fatalf("expected correct answer, got %+v", payload)
			}
		case "leaderboard-update":
			leaderboardSeen = true
		}
		if resultSeen && leaderboardSeen {
			break
		}
	}
	if !resultSeen || !leaderboardSeen {
		t.Fatalf("expected answer-result and leaderboard-update, got result=%v leaderboard=%v", resultSeen, leaderboardSeen)
	}
}

func TestWebSocketSubmitBeforeJoin(t *testing.T) {
	env := newWSEnv(t)
	defer env.server.Close()

	conn := dialWS(t, env.server)
	defer conn.Close()

	if _, err := env.runner.Start(context.Background(), "admin"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	answer := map[string]any{
		"type": "submit-answer",
		"payload": map[string]any{
			"questionId":     "q1",
			"selectedAnswer": 1,
		},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	msgType, payload := readNext(conn, t, "error")
	if msgType != "error" {
		t.Fatalf("expected error event, got %s", msgType)
	}
	if msg, _ := payload["message"].(string); msg != domain.ErrNotJoined.Error() {
		t.Fatalf("unexpected error message: %q", msg)
	}
}

func TestWebSocketAdminForceAdvance(t *testing.T) {
	env := newWSEnv(t)
	defer env.server.Close()

	student := dialWS(t, env.server)
	defer student.Close()
	admin := dialWS(t, env.server)
	defer admin.Close()

	// Non-admins cannot force-advance even before joining a room.
	if err := student.WriteJSON(map[string]any{"type": "force-next-question"}); err != nil {
		t.Fatalf("write force: %v", err)
	}
	if msgType, _ := readNext(student, t, "error"); msgType != "error" {
		t.Fatalf("expected error for non-admin")
	}

	if err := admin.WriteJSON(map[string]any{
		"type":    "admin-join",
		"payload": map[string]any{"adminId": "admin"},
	}); err != nil {
		t.Fatalf("write admin-join: %v", err)
	}

	// Admin joined, but with no active session the advance is rejected with a
	// session error rather than a permission error.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := admin.WriteJSON(map[string]any{"type": "force-next-question"}); err != nil {
			t.Fatalf("write force: %v", err)
		}
		_, payload := readNext(admin, t, "error")
		msg, _ := payload["message"].(string)
		if msg == domain.ErrNoActiveSession.Error() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("admin-join never took effect, last error: %q", msg)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type wsEnv struct {
	runner *app.QuizRunner
	server *httptest.Server
}

func newWSEnv(t *testing.T) *wsEnv {
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

	catalog := memory.NewQuestionCache(memory.NewStaticQuestionLoader([]domain.Question{
		{
			ID:               "q1",
			Text:             "What is 2 + 2?",
			Options:          []string{"3", "4", "5"},
			CorrectAnswer:    1,
			TimeLimitSeconds: 60,
			Active:           true,
		},
	}), time.Minute)

	hub := NewHub()
	runner := app.NewQuizRunner(store, catalog, hub, app.RunnerConfig{
		LeadIn:          5 * time.Millisecond,
		GracePeriod:     5 * time.Millisecond,
		LeaderboardSize: 10,
	})
	wsHandler := NewWSHandler(runner, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)

	t.Cleanup(func() { _ = runner.Stop(context.Background()) })
	return &wsEnv{runner: runner, server: server}
}

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitForParticipants(t *testing.T, runner *app.QuizRunner, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runner.Status().ParticipantCount >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d participants", n)
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
