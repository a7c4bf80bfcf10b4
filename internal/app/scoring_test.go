package app_test

import (
	"testing"
	"time"

	"live-quiz-service/internal/app"
)

func TestScore(t *testing.T) {
	limit := 60 * time.Second

	if got := app.Score(true, 0, limit); got != 1000 {
		t.Fatalf("instant correct answer: expected 1000, got %d", got)
	}
	if got := app.Score(true, 30*time.Second, limit); got != 750 {
		t.Fatalf("half-time correct answer: expected 750, got %d", got)
	}
	if got := app.Score(true, 60*time.Second, limit); got != 500 {
		t.Fatalf("last-moment correct answer: expected 500, got %d", got)
	}
	if got := app.Score(false, 0, limit); got != 0 {
		t.Fatalf("incorrect answer: expected 0, got %d", got)
	}
}

func TestScoreFloorsAtHalfMultiplier(t *testing.T) {
	// Past the limit the multiplier clamps rather than going below 0.5.
	if got := app.Score(true, 90*time.Second, 60*time.Second); got != 500 {
		t.Fatalf("expected clamped score 500, got %d", got)
	}
}

func TestScoreRounding(t *testing.T) {
	// 20s of 30s leaves a multiplier of 2/3; 1000*2/3 rounds to 667.
	if got := app.Score(true, 20*time.Second, 30*time.Second); got != 667 {
		t.Fatalf("expected rounded score 667, got %d", got)
	}
}
