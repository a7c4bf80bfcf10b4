package domain

// Event is the wire frame for the realtime channel.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

type EventType string

const (
	EventQuizStarted       EventType = "quiz-started"
	EventNewQuestion       EventType = "new-question"
	EventAnswerResult      EventType = "answer-result"
	EventQuestionEnded     EventType = "question-ended"
	EventLeaderboardUpdate EventType = "leaderboard-update"
	EventQuizEnded         EventType = "quiz-ended"
	EventError             EventType = "error"
)

type QuizStartedPayload struct {
	SessionID      string `json:"sessionId"`
	TotalQuestions int    `json:"totalQuestions"`
	Message        string `json:"message"`
}

// NewQuestionPayload deliberately carries no correct answer; it is broadcast
// to participant connections.
type NewQuestionPayload struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	TimeLimit      int      `json:"timeLimit"`
	QuestionNumber int      `json:"questionNumber"`
	TotalQuestions int      `json:"totalQuestions"`
	StartTime      string   `json:"startTime"`
}

// AnswerResultPayload is unicast to the submitting connection only.
type AnswerResultPayload struct {
	IsCorrect          bool   `json:"isCorrect"`
	Score              int    `json:"score"`
	ResponseTimeMillis int64  `json:"responseTime"`
	Message            string `json:"message"`
}

type QuestionEndedPayload struct {
	QuestionID     string `json:"questionId"`
	QuestionNumber int    `json:"questionNumber"`
	TotalQuestions int    `json:"totalQuestions"`
}

type LeaderboardUpdatePayload struct {
	Entries []LeaderboardEntry `json:"entries"`
}

type QuizEndedPayload struct {
	SessionID        string             `json:"sessionId"`
	FinalLeaderboard []LeaderboardEntry `json:"finalLeaderboard,omitempty"`
	TotalQuestions   int                `json:"totalQuestions,omitempty"`
	Message          string             `json:"message"`
	WasForceEnded    bool               `json:"wasForceEnded,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// ErrorEvent wraps a message in a connection-scoped error frame.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Payload: ErrorPayload{Message: message}}
}
