package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// QuestionRepository loads quiz questions (from cache/backing store).
type QuestionRepository interface {
	ActiveQuestions(ctx context.Context) ([]domain.Question, error)
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
}

// Room groups connections for fan-out.
type Room string

const (
	RoomParticipants Room = "participants"
	RoomAdmins       Room = "admins"
)

// Broadcaster is the realtime channel the runner emits events on. Delivery
// is fire-and-forget; the runner never blocks on it.
type Broadcaster interface {
	Broadcast(room Room, event domain.Event)
	Send(connID string, event domain.Event)
	Subscribe(connID string, room Room)
	InRoom(connID string, room Room) bool
}

// RunnerConfig controls quiz pacing.
type RunnerConfig struct {
	// LeadIn is the pause between quiz start and the first question, giving
	// clients time to render a starting screen.
	LeadIn time.Duration
	// GracePeriod is the pause after a question's window closes before the
	// next question is dispatched.
	GracePeriod time.Duration
	// LeaderboardSize bounds broadcast standings.
	LeaderboardSize int
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.LeadIn <= 0 {
		c.LeadIn = 3 * time.Second
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 5 * time.Second
	}
	if c.LeaderboardSize <= 0 {
		c.LeaderboardSize = 20
	}
	return c
}

type participant struct {
	userID   string
	username string
	connID   string
}

// QuizRunner owns the single authoritative quiz run: which question is
// active, since when, for how long. Exactly one instance exists per process;
// all handlers receive it by reference. The mutex serializes every operation
// that touches run state, including timer callbacks.
type QuizRunner struct {
	store     DocumentStore
	questions QuestionRepository
	board     *Leaderboard
	bus       Broadcaster
	cfg       RunnerConfig
	now       func() time.Time
	rnd       *rand.Rand

	mu             sync.Mutex
	sessionID      string
	order          []domain.Question
	index          int
	currentID      string
	currentPayload domain.NewQuestionPayload
	startedAt      time.Time
	limit          time.Duration
	timer          *time.Timer
	timerGen       int
	participants   map[string]participant
}

func NewQuizRunner(store DocumentStore, questions QuestionRepository, bus Broadcaster, cfg RunnerConfig) *QuizRunner {
	return NewQuizRunnerWithClock(store, questions, bus, cfg, time.Now)
}

// NewQuizRunnerWithClock allows deterministic timestamps in tests.
func NewQuizRunnerWithClock(store DocumentStore, questions QuestionRepository, bus Broadcaster, cfg RunnerConfig, now func() time.Time) *QuizRunner {
	return &QuizRunner{
		store:        store,
		questions:    questions,
		board:        NewLeaderboard(store),
		bus:          bus,
		cfg:          cfg.withDefaults(),
		now:          now,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
		participants: make(map[string]participant),
	}
}

// Start loads and shuffles the question set, creates a session record, and
// schedules the first question after the lead-in delay.
func (r *QuizRunner) Start(ctx context.Context, adminID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionID != "" {
		return "", domain.ErrQuizAlreadyActive
	}

	qs, err := r.questions.ActiveQuestions(ctx)
	if err != nil {
		return "", fmt.Errorf("load questions: %w", err)
	}
	if len(qs) == 0 {
		return "", domain.ErrNoQuestionsAvailable
	}

	order := make([]domain.Question, len(qs))
	copy(order, qs)
	r.rnd.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	session := domain.QuizSession{StartedAt: r.now(), CreatedBy: adminID}
	doc, err := r.store.Create(ctx, CollectionSessions, session.Fields(), "")
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	r.sessionID = doc.ID
	r.order = order
	r.index = 0

	r.bus.Broadcast(RoomParticipants, domain.Event{
		Type: domain.EventQuizStarted,
		Payload: domain.QuizStartedPayload{
			SessionID:      doc.ID,
			TotalQuestions: len(order),
			Message:        "Quiz started! First question coming up...",
		},
	})
	r.scheduleLocked(r.cfg.LeadIn, r.advanceAfterDelay)

	log.Printf("quiz %s started by %s with %d questions", doc.ID, adminID, len(order))
	return doc.ID, nil
}

// Stop force-ends the current run. A no-op when idle.
func (r *QuizRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionID == "" {
		log.Printf("no active quiz to stop")
		return nil
	}

	sessionID := r.sessionID
	r.closeSessionRecordLocked(ctx)
	r.bus.Broadcast(RoomParticipants, domain.Event{
		Type: domain.EventQuizEnded,
		Payload: domain.QuizEndedPayload{
			SessionID:     sessionID,
			Message:       "Quiz stopped by administrator",
			WasForceEnded: true,
		},
	})
	r.resetLocked()

	log.Printf("quiz %s stopped by admin", sessionID)
	return nil
}

// ForceAdvance skips the current question timer. Admin connections only.
func (r *QuizRunner) ForceAdvance(ctx context.Context, connID string) error {
	if !r.bus.InRoom(connID, RoomAdmins) {
		return domain.ErrAdminRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessionID == "" {
		return domain.ErrNoActiveSession
	}
	return r.advanceLocked(ctx)
}

// Join registers the connection as a participant. If a question is live the
// joining connection receives it immediately so late joiners are not left
// blank.
func (r *QuizRunner) Join(ctx context.Context, connID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.store.Get(ctx, CollectionUsers, userID)
	if err != nil {
		return fmt.Errorf("resolve user %s: %w", userID, err)
	}
	user := domain.UserFromFields(doc.ID, doc.Fields)

	r.participants[userID] = participant{userID: userID, username: user.Username, connID: connID}
	r.bus.Subscribe(connID, RoomParticipants)

	if r.currentID != "" {
		r.bus.Send(connID, domain.Event{Type: domain.EventNewQuestion, Payload: r.currentPayload})
	}

	log.Printf("user %s joined quiz", user.Username)
	return nil
}

// AdminJoin subscribes the connection to the admins room after verifying the
// account's role.
func (r *QuizRunner) AdminJoin(ctx context.Context, connID, adminID string) error {
	doc, err := r.store.Get(ctx, CollectionUsers, adminID)
	if err != nil {
		return fmt.Errorf("resolve admin %s: %w", adminID, err)
	}
	user := domain.UserFromFields(doc.ID, doc.Fields)
	if user.Role != domain.RoleAdmin {
		return domain.ErrAdminRequired
	}

	r.bus.Subscribe(connID, RoomAdmins)
	log.Printf("admin %s joined", user.Username)
	return nil
}

// Disconnect removes the participant registered on the connection. The quiz
// keeps running even when an admin drops.
func (r *QuizRunner) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, p := range r.participants {
		if p.connID == connID {
			delete(r.participants, userID)
			log.Printf("user %s disconnected", p.username)
			break
		}
	}
}

// SubmitAnswer validates and records an answer arriving on the realtime
// channel. The returned result is for the submitting connection only.
func (r *QuizRunner) SubmitAnswer(ctx context.Context, connID, questionID string, selected int) (domain.AnswerResultPayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var from participant
	found := false
	for _, p := range r.participants {
		if p.connID == connID {
			from = p
			found = true
			break
		}
	}
	if !found {
		return domain.AnswerResultPayload{}, domain.ErrNotJoined
	}
	return r.submitLocked(ctx, from.userID, from.username, questionID, selected)
}

// SubmitAnswerByUser is the HTTP facade's answer path. Validation, scoring,
// and persistence are identical to the channel path.
func (r *QuizRunner) SubmitAnswerByUser(ctx context.Context, userID, questionID string, selected int) (domain.AnswerResultPayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username := ""
	if p, ok := r.participants[userID]; ok {
		username = p.username
	} else {
		doc, err := r.store.Get(ctx, CollectionUsers, userID)
		if err != nil {
			return domain.AnswerResultPayload{}, fmt.Errorf("resolve user %s: %w", userID, err)
		}
		username = domain.UserFromFields(doc.ID, doc.Fields).Username
	}
	return r.submitLocked(ctx, userID, username, questionID, selected)
}

func (r *QuizRunner) submitLocked(ctx context.Context, userID, username, questionID string, selected int) (domain.AnswerResultPayload, error) {
	if r.sessionID == "" {
		return domain.AnswerResultPayload{}, domain.ErrNoActiveSession
	}
	if r.currentID == "" {
		return domain.AnswerResultPayload{}, domain.ErrNoActiveQuestion
	}

	// The window check is against elapsed wall time, not timer-fired state,
	// so a delayed submission is rejected even under scheduling jitter.
	responseTime := r.now().Sub(r.startedAt)
	if responseTime > r.limit {
		return domain.AnswerResultPayload{}, domain.ErrTimeExceeded
	}
	if questionID != r.currentID {
		return domain.AnswerResultPayload{}, domain.ErrStaleQuestion
	}

	existing, err := r.store.List(ctx, CollectionResponses, []Predicate{
		{Field: "userId", Equals: userID},
		{Field: "questionId", Equals: questionID},
	}, ListOptions{Limit: 1})
	if err != nil {
		return domain.AnswerResultPayload{}, fmt.Errorf("check existing response: %w", err)
	}
	if len(existing) > 0 {
		return domain.AnswerResultPayload{}, domain.ErrDuplicateAnswer
	}

	// Fetched fresh; the client's view of the question is never trusted.
	question, err := r.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.AnswerResultPayload{}, fmt.Errorf("load question %s: %w", questionID, err)
	}

	isCorrect := selected == question.CorrectAnswer
	score := Score(isCorrect, responseTime, r.limit)

	response := domain.Response{
		UserID:             userID,
		SessionID:          r.sessionID,
		QuestionID:         questionID,
		SelectedAnswer:     selected,
		IsCorrect:          isCorrect,
		ResponseTimeMillis: responseTime.Milliseconds(),
		Score:              score,
	}
	if _, err := r.store.Create(ctx, CollectionResponses, response.Fields(), ""); err != nil {
		return domain.AnswerResultPayload{}, fmt.Errorf("save response: %w", err)
	}

	// The answer is accepted at this point; a missed leaderboard refresh
	// self-heals on the next recompute.
	if err := r.board.Recompute(ctx, userID, username, r.sessionID); err != nil {
		log.Printf("leaderboard recompute for %s: %v", userID, err)
	} else if entries, err := r.board.TopN(ctx, r.sessionID, r.cfg.LeaderboardSize); err != nil {
		log.Printf("leaderboard fetch: %v", err)
	} else {
		r.bus.Broadcast(RoomParticipants, domain.Event{
			Type:    domain.EventLeaderboardUpdate,
			Payload: domain.LeaderboardUpdatePayload{Entries: entries},
		})
	}

	message := "Incorrect answer"
	if isCorrect {
		message = fmt.Sprintf("Correct! +%d points", score)
	}
	log.Printf("answer from %s: correct=%v score=%d", username, isCorrect, score)

	return domain.AnswerResultPayload{
		IsCorrect:          isCorrect,
		Score:              score,
		ResponseTimeMillis: responseTime.Milliseconds(),
		Message:            message,
	}, nil
}

// advanceLocked dispatches the next question or ends the quiz when the order
// is exhausted. Callers hold r.mu.
func (r *QuizRunner) advanceLocked(ctx context.Context) error {
	r.cancelTimerLocked()

	if r.index >= len(r.order) {
		return r.endLocked(ctx)
	}

	question := r.order[r.index]
	r.currentID = question.ID
	r.startedAt = r.now()
	r.limit = question.TimeLimit()
	r.currentPayload = domain.NewQuestionPayload{
		ID:             question.ID,
		Text:           question.Text,
		Options:        question.Options,
		TimeLimit:      question.TimeLimitSeconds,
		QuestionNumber: r.index + 1,
		TotalQuestions: len(r.order),
		StartTime:      r.startedAt.Format(time.RFC3339Nano),
	}

	if _, err := r.store.Update(ctx, CollectionSessions, r.sessionID, Fields{"currentQuestionId": question.ID}); err != nil {
		// No timer is armed yet, so failing here leaves nothing dangling.
		r.currentID = ""
		r.currentPayload = domain.NewQuestionPayload{}
		return fmt.Errorf("update session question: %w", err)
	}

	r.bus.Broadcast(RoomParticipants, domain.Event{Type: domain.EventNewQuestion, Payload: r.currentPayload})
	log.Printf("question %d/%d sent: %s", r.index+1, len(r.order), truncate(question.Text, 50))

	r.scheduleLocked(question.TimeLimit(), r.questionTimeout)
	r.index++
	return nil
}

// questionTimeout closes the question window and schedules the next advance
// after the grace period.
func (r *QuizRunner) questionTimeout(gen int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.timerGen || r.sessionID == "" || r.currentID == "" {
		return
	}
	r.timer = nil

	ended := domain.QuestionEndedPayload{
		QuestionID:     r.currentID,
		QuestionNumber: r.currentPayload.QuestionNumber,
		TotalQuestions: len(r.order),
	}
	log.Printf("question %d/%d time up", ended.QuestionNumber, ended.TotalQuestions)
	r.bus.Broadcast(RoomParticipants, domain.Event{Type: domain.EventQuestionEnded, Payload: ended})

	r.currentID = ""
	r.currentPayload = domain.NewQuestionPayload{}
	r.scheduleLocked(r.cfg.GracePeriod, r.advanceAfterDelay)
}

func (r *QuizRunner) advanceAfterDelay(gen int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.timerGen || r.sessionID == "" {
		return
	}
	r.timer = nil
	if err := r.advanceLocked(context.Background()); err != nil {
		log.Printf("advance: %v", err)
	}
}

func (r *QuizRunner) endLocked(ctx context.Context) error {
	sessionID := r.sessionID

	final, err := r.board.TopN(ctx, sessionID, r.cfg.LeaderboardSize)
	if err != nil {
		// The quiz still ends; a stuck run is worse than a missing board.
		log.Printf("final leaderboard for %s: %v", sessionID, err)
		final = nil
	}

	r.closeSessionRecordLocked(ctx)
	r.bus.Broadcast(RoomParticipants, domain.Event{
		Type: domain.EventQuizEnded,
		Payload: domain.QuizEndedPayload{
			SessionID:        sessionID,
			FinalLeaderboard: final,
			TotalQuestions:   len(r.order),
			Message:          "Quiz completed! Thanks for participating!",
		},
	})

	participants := len(r.participants)
	r.resetLocked()
	log.Printf("quiz %s completed with %d participants", sessionID, participants)
	return nil
}

// closeSessionRecordLocked stamps the persisted session log; best-effort.
func (r *QuizRunner) closeSessionRecordLocked(ctx context.Context) {
	fields := Fields{
		"currentQuestionId": "",
		"endTime":           r.now().Format(time.RFC3339Nano),
	}
	if _, err := r.store.Update(ctx, CollectionSessions, r.sessionID, fields); err != nil {
		log.Printf("close session record %s: %v", r.sessionID, err)
	}
}

// resetLocked returns the runner to idle. Participants survive the reset;
// membership changes only on join/disconnect.
func (r *QuizRunner) resetLocked() {
	r.cancelTimerLocked()
	r.sessionID = ""
	r.order = nil
	r.index = 0
	r.currentID = ""
	r.currentPayload = domain.NewQuestionPayload{}
	r.startedAt = time.Time{}
	r.limit = 0
}

// scheduleLocked replaces the pending timer. At most one timer is live; the
// generation counter makes an already-fired stale callback a no-op.
func (r *QuizRunner) scheduleLocked(d time.Duration, fn func(gen int)) {
	r.cancelTimerLocked()
	gen := r.timerGen
	r.timer = time.AfterFunc(d, func() { fn(gen) })
}

func (r *QuizRunner) cancelTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.timerGen++
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
