package domain

import "time"

// User is an account known to the quiz. Role gates admin operations.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

const RoleAdmin = "admin"

// Question is an MCQ with a single correct option index.
type Question struct {
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	Options          []string `json:"options"`
	CorrectAnswer    int      `json:"correctAnswer"`
	TimeLimitSeconds int      `json:"timeLimit"`
	Active           bool     `json:"isActive"`
}

const (
	minOptions      = 2
	maxOptions      = 6
	minTimeLimitSec = 10
	maxTimeLimitSec = 300
)

// Validate checks authoring constraints before a question is accepted.
func (q Question) Validate() error {
	if q.Text == "" {
		return ErrInvalidQuestion
	}
	if len(q.Options) < minOptions || len(q.Options) > maxOptions {
		return ErrInvalidQuestion
	}
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
		return ErrInvalidQuestion
	}
	if q.TimeLimitSeconds < minTimeLimitSec || q.TimeLimitSeconds > maxTimeLimitSec {
		return ErrInvalidQuestion
	}
	return nil
}

// TimeLimit returns the answer window as a duration.
func (q Question) TimeLimit() time.Duration {
	return time.Duration(q.TimeLimitSeconds) * time.Second
}

// QuizSession is the persisted record of one quiz run. The in-memory runner
// is authoritative while the process is alive; this record is a log.
type QuizSession struct {
	ID                string     `json:"id"`
	StartedAt         time.Time  `json:"startTime"`
	CreatedBy         string     `json:"createdBy"`
	CurrentQuestionID string     `json:"currentQuestionId"`
	EndedAt           *time.Time `json:"endTime,omitempty"`
}

// Response is one participant's answer to one question, append-only.
type Response struct {
	ID                 string `json:"id"`
	UserID             string `json:"userId"`
	SessionID          string `json:"sessionId"`
	QuestionID         string `json:"questionId"`
	SelectedAnswer     int    `json:"selectedAnswer"`
	IsCorrect          bool   `json:"isCorrect"`
	ResponseTimeMillis int64  `json:"responseTime"`
	Score              int    `json:"score"`
}

// LeaderboardEntry is the running per-user, per-session standing.
type LeaderboardEntry struct {
	ID                        string  `json:"id"`
	UserID                    string  `json:"userId"`
	Username                  string  `json:"username"`
	SessionID                 string  `json:"sessionId"`
	TotalScore                int     `json:"totalScore"`
	CorrectAnswers            int     `json:"correctAnswers"`
	TotalQuestions            int     `json:"totalQuestions"`
	AverageResponseTimeMillis float64 `json:"averageResponseTime"`
}

// Field conversion between typed models and document-store records. Stores
// that round-trip through JSON hand numbers back as float64, so reads go
// through the coercing helpers below.

func (u User) Fields() map[string]any {
	return map[string]any{
		"username": u.Username,
		"email":    u.Email,
		"role":     u.Role,
	}
}

func UserFromFields(id string, f map[string]any) User {
	return User{
		ID:       id,
		Username: asString(f["username"]),
		Email:    asString(f["email"]),
		Role:     asString(f["role"]),
	}
}

func (q Question) Fields() map[string]any {
	return map[string]any{
		"text":          q.Text,
		"options":       q.Options,
		"correctAnswer": q.CorrectAnswer,
		"timeLimit":     q.TimeLimitSeconds,
		"isActive":      q.Active,
	}
}

func QuestionFromFields(id string, f map[string]any) Question {
	return Question{
		ID:               id,
		Text:             asString(f["text"]),
		Options:          asStrings(f["options"]),
		CorrectAnswer:    asInt(f["correctAnswer"]),
		TimeLimitSeconds: asInt(f["timeLimit"]),
		Active:           asBool(f["isActive"]),
	}
}

func (s QuizSession) Fields() map[string]any {
	f := map[string]any{
		"startTime":         s.StartedAt.Format(time.RFC3339Nano),
		"createdBy":         s.CreatedBy,
		"currentQuestionId": s.CurrentQuestionID,
	}
	if s.EndedAt != nil {
		f["endTime"] = s.EndedAt.Format(time.RFC3339Nano)
	}
	return f
}

func (r Response) Fields() map[string]any {
	return map[string]any{
		"userId":         r.UserID,
		"sessionId":      r.SessionID,
		"questionId":     r.QuestionID,
		"selectedAnswer": r.SelectedAnswer,
		"isCorrect":      r.IsCorrect,
		"responseTime":   r.ResponseTimeMillis,
		"score":          r.Score,
	}
}

func ResponseFromFields(id string, f map[string]any) Response {
	return Response{
		ID:                 id,
		UserID:             asString(f["userId"]),
		SessionID:          asString(f["sessionId"]),
		QuestionID:         asString(f["questionId"]),
		SelectedAnswer:     asInt(f["selectedAnswer"]),
		IsCorrect:          asBool(f["isCorrect"]),
		ResponseTimeMillis: int64(asInt(f["responseTime"])),
		Score:              asInt(f["score"]),
	}
}

func (e LeaderboardEntry) Fields() map[string]any {
	return map[string]any{
		"userId":              e.UserID,
		"username":            e.Username,
		"sessionId":           e.SessionID,
		"totalScore":          e.TotalScore,
		"correctAnswers":      e.CorrectAnswers,
		"totalQuestions":      e.TotalQuestions,
		"averageResponseTime": e.AverageResponseTimeMillis,
	}
}

func LeaderboardEntryFromFields(id string, f map[string]any) LeaderboardEntry {
	return LeaderboardEntry{
		ID:                        id,
		UserID:                    asString(f["userId"]),
		Username:                  asString(f["username"]),
		SessionID:                 asString(f["sessionId"]),
		TotalScore:                asInt(f["totalScore"]),
		CorrectAnswers:            asInt(f["correctAnswers"]),
		TotalQuestions:            asInt(f["totalQuestions"]),
		AverageResponseTimeMillis: asFloat(f["averageResponseTime"]),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func asStrings(v any) []string {
	switch vs := v.(type) {
	case []string:
		return vs
	case []any:
		out := make([]string, 0, len(vs))
		for _, item := range vs {
			out = append(out, asString(item))
		}
		return out
	}
	return nil
}
