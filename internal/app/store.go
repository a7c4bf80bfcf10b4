package app

import (
	"context"
	"sort"
)

// Collection names used by the quiz core.
const (
	CollectionUsers       = "users"
	CollectionQuestions   = "questions"
	CollectionSessions    = "sessions"
	CollectionResponses   = "responses"
	CollectionLeaderboard = "leaderboard"
)

// Fields is the mutable payload of a stored document.
type Fields = map[string]any

// Document is a stored record with its store-assigned ID.
type Document struct {
	ID     string
	Fields Fields
}

// Predicate is an equality filter on a named field.
type Predicate struct {
	Field  string
	Equals any
}

// ListOptions orders results descending by a numeric field and bounds the
// result count. Zero values mean unordered / unbounded.
type ListOptions struct {
	OrderDescBy string
	Limit       int
}

// DocumentStore abstracts the keyed-collection store backing sessions,
// responses, leaderboard entries, and users (in-memory, Redis, etc).
// Implementations return domain.ErrNotFound for missing documents and wrap
// transport failures in domain.ErrStoreUnavailable.
type DocumentStore interface {
	Create(ctx context.Context, collection string, fields Fields, id string) (Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Update(ctx context.Context, collection, id string, fields Fields) (Document, error)
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string, preds []Predicate, opts ListOptions) ([]Document, error)
}

// Matches reports whether a document's fields satisfy every predicate.
// Shared by store implementations so filtering semantics stay identical.
func Matches(fields Fields, preds []Predicate) bool {
	for _, p := range preds {
		if !valueEqual(fields[p.Field], p.Equals) {
			return false
		}
	}
	return true
}

// ApplyListOptions sorts descending by the named numeric field and truncates
// to the limit.
func ApplyListOptions(docs []Document, opts ListOptions) []Document {
	if opts.OrderDescBy != "" {
		field := opts.OrderDescBy
		sort.SliceStable(docs, func(i, j int) bool {
			a, _ := Numeric(docs[i].Fields[field])
			b, _ := Numeric(docs[j].Fields[field])
			return a > b
		})
	}
	if opts.Limit > 0 && len(docs) > opts.Limit {
		docs = docs[:opts.Limit]
	}
	return docs
}

// Numeric coerces the int and float64 forms a number takes before and after
// a JSON round-trip.
func Numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func valueEqual(a, b any) bool {
	if fa, ok := Numeric(a); ok {
		fb, ok := Numeric(b)
		return ok && fa == fb
	}
	return a == b
}
