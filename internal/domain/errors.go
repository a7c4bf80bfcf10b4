package domain

import "errors"

var (
	// ErrQuizAlreadyActive is returned when start is called while a run is live.
	ErrQuizAlreadyActive = errors.New("a quiz session is already active")
	// ErrNoQuestionsAvailable is returned when start finds no active questions.
	ErrNoQuestionsAvailable = errors.New("no questions available to start quiz")
	// ErrNoActiveSession is returned by operations that need a live run.
	ErrNoActiveSession = errors.New("no active quiz session")
	// ErrNotJoined is returned when a connection submits before joining.
	ErrNotJoined = errors.New("user not found in quiz")
	// ErrNoActiveQuestion is returned when no question window is open.
	ErrNoActiveQuestion = errors.New("no active question")
	// ErrStaleQuestion is returned for answers to a question that is no longer current.
	ErrStaleQuestion = errors.New("this question is no longer active")
	// ErrTimeExceeded is returned when an answer arrives after the window.
	ErrTimeExceeded = errors.New("response time exceeded question time limit")
	// ErrDuplicateAnswer is returned on a second answer to the same question.
	ErrDuplicateAnswer = errors.New("question already answered")
	// ErrAdminRequired is returned when a non-admin invokes an admin operation.
	ErrAdminRequired = errors.New("admin access required")
	// ErrNotFound is propagated from store lookups.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidQuestion indicates a question failing authoring constraints.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrStoreUnavailable wraps store failures not otherwise classified.
	ErrStoreUnavailable = errors.New("document store unavailable")
)
