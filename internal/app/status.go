package app

import (
	"context"
	"fmt"
	"time"

	"live-quiz-service/internal/domain"
)

// RunStatus is the synchronous snapshot served to polling clients.
type RunStatus struct {
	IsActive          bool   `json:"isActive"`
	CurrentSessionID  string `json:"currentSessionId,omitempty"`
	CurrentQuestionID string `json:"currentQuestionId,omitempty"`
	QuestionStartTime string `json:"questionStartTime,omitempty"`
	ParticipantCount  int    `json:"participantCount"`
}

// ActiveQuestion is the polling view of the live question, without the
// correct answer.
type ActiveQuestion struct {
	domain.NewQuestionPayload
	RemainingSeconds float64 `json:"remainingTime"`
}

// QuestionView mirrors the realtime question state for clients that cannot
// hold a persistent connection.
type QuestionView struct {
	HasActiveQuiz bool            `json:"hasActiveQuiz"`
	Question      *ActiveQuestion `json:"question"`
	HasAnswered   bool            `json:"hasAnswered"`
	TimeExpired   bool            `json:"timeExpired,omitempty"`
	Message       string          `json:"message,omitempty"`
}

// Status reports whether a run is live and where it stands.
func (r *QuizRunner) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := RunStatus{
		IsActive:          r.sessionID != "",
		CurrentSessionID:  r.sessionID,
		CurrentQuestionID: r.currentID,
		ParticipantCount:  len(r.participants),
	}
	if r.currentID != "" {
		status.QuestionStartTime = r.startedAt.Format(time.RFC3339Nano)
	}
	return status
}

// CurrentQuestion returns the live question for the polling facade, with the
// same time-window semantics as the realtime channel.
func (r *QuizRunner) CurrentQuestion(ctx context.Context, userID string) (QuestionView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionID == "" {
		return QuestionView{Message: "No active quiz session"}, nil
	}
	view := QuestionView{HasActiveQuiz: true}
	if r.currentID == "" {
		view.Message = "Waiting for next question..."
		return view, nil
	}

	elapsed := r.now().Sub(r.startedAt)
	if elapsed > r.limit {
		view.TimeExpired = true
		view.Message = "Question time has expired. Waiting for next question..."
		return view, nil
	}

	existing, err := r.store.List(ctx, CollectionResponses, []Predicate{
		{Field: "userId", Equals: userID},
		{Field: "questionId", Equals: r.currentID},
	}, ListOptions{Limit: 1})
	if err != nil {
		return QuestionView{}, fmt.Errorf("check existing response: %w", err)
	}

	view.Question = &ActiveQuestion{
		NewQuestionPayload: r.currentPayload,
		RemainingSeconds:   (r.limit - elapsed).Seconds(),
	}
	view.HasAnswered = len(existing) > 0
	return view, nil
}

// CurrentLeaderboard returns the live session's standings, or nil when idle.
func (r *QuizRunner) CurrentLeaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	r.mu.Lock()
	sessionID := r.sessionID
	size := r.cfg.LeaderboardSize
	r.mu.Unlock()

	if sessionID == "" {
		return nil, nil
	}
	return r.board.TopN(ctx, sessionID, size)
}
