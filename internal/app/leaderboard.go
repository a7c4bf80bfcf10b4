package app

import (
	"context"
	"fmt"

	"live-quiz-service/internal/domain"
)

// Leaderboard derives per-user standings from persisted responses.
//
// Recompute scans everything the user answered in the session instead of
// incrementing totals in place, so a retried write can never double-count:
// the operation is idempotent and self-heals on the next answer.
type Leaderboard struct {
	store DocumentStore
}

func NewLeaderboard(store DocumentStore) *Leaderboard {
	return &Leaderboard{store: store}
}

// Recompute re-derives the user's totals for the session and upserts the
// single leaderboard entry for (user, session).
func (l *Leaderboard) Recompute(ctx context.Context, userID, username, sessionID string) error {
	docs, err := l.store.List(ctx, CollectionResponses, []Predicate{
		{Field: "userId", Equals: userID},
		{Field: "sessionId", Equals: sessionID},
	}, ListOptions{})
	if err != nil {
		return fmt.Errorf("list responses: %w", err)
	}

	entry := domain.LeaderboardEntry{
		UserID:    userID,
		Username:  username,
		SessionID: sessionID,
	}
	var totalResponseTime int64
	for _, doc := range docs {
		resp := domain.ResponseFromFields(doc.ID, doc.Fields)
		entry.TotalQuestions++
		entry.TotalScore += resp.Score
		if resp.IsCorrect {
			entry.CorrectAnswers++
		}
		totalResponseTime += resp.ResponseTimeMillis
	}
	if entry.TotalQuestions > 0 {
		entry.AverageResponseTimeMillis = float64(totalResponseTime) / float64(entry.TotalQuestions)
	}

	existing, err := l.store.List(ctx, CollectionLeaderboard, []Predicate{
		{Field: "userId", Equals: userID},
		{Field: "sessionId", Equals: sessionID},
	}, ListOptions{Limit: 1})
	if err != nil {
		return fmt.Errorf("list leaderboard: %w", err)
	}

	if len(existing) > 0 {
		if _, err := l.store.Update(ctx, CollectionLeaderboard, existing[0].ID, entry.Fields()); err != nil {
			return fmt.Errorf("update leaderboard entry: %w", err)
		}
		return nil
	}
	if _, err := l.store.Create(ctx, CollectionLeaderboard, entry.Fields(), ""); err != nil {
		return fmt.Errorf("create leaderboard entry: %w", err)
	}
	return nil
}

// TopN returns the session's standings ordered by total score descending.
func (l *Leaderboard) TopN(ctx context.Context, sessionID string, n int) ([]domain.LeaderboardEntry, error) {
	docs, err := l.store.List(ctx, CollectionLeaderboard, []Predicate{
		{Field: "sessionId", Equals: sessionID},
	}, ListOptions{OrderDescBy: "totalScore", Limit: n})
	if err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}
	entries := make([]domain.LeaderboardEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, domain.LeaderboardEntryFromFields(doc.ID, doc.Fields))
	}
	return entries, nil
}
