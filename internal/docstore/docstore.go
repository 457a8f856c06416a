// Package docstore is the document-store contract the coordination core
// runs against: keyed field-map documents, shallow merge writes with
// array/counter operators, per-document read-modify-write transactions,
// predicate queries and whole-value subscriptions.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUnavailable      = errors.New("store unavailable")
	ErrPermissionDenied = errors.New("permission denied")
	// ErrConflict is reserved for optimistic-locking failures; nothing
	// returns it today.
	ErrConflict = errors.New("conflict")
)

type Document struct {
	Path   string
	ID     string
	Fields map[string]any
}

// Tx is the view a transaction body gets. Writes are buffered and apply
// atomically on commit; returning an error from the body aborts with no
// side effects.
type Tx interface {
	Get(path string) (Document, error)
	Set(path string, fields map[string]any, merge bool)
}

type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
	OpIn            Op = "in"
)

type Predicate struct {
	Field string
	Op    Op
	Value any
}

func Where(field string, op Op, value any) Predicate {
	return Predicate{Field: field, Op: op, Value: value}
}

type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	Set(ctx context.Context, path string, fields map[string]any, merge bool) error
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
	Query(ctx context.Context, collection string, preds []Predicate, limit int) ([]Document, error)
	Subscribe(ctx context.Context, path string) (*Subscription, error)
	Ready(ctx context.Context) error
	Close(ctx context.Context) error
}

// Open selects a backend by URL scheme:
//   - memory:            in-process store (tests, local dev)
//   - mongodb://host/... mongo-backed store
func Open(ctx context.Context, storeURL, database string, logger *slog.Logger) (Store, error) {
	if strings.TrimSpace(storeURL) == "" {
		return nil, fmt.Errorf("STORE_URL is required")
	}
	u, err := url.Parse(storeURL)
	if err != nil {
		return nil, fmt.Errorf("parse STORE_URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "memory":
		return NewMemory(logger), nil
	case "mongodb", "mongodb+srv":
		return openMongo(ctx, storeURL, database, logger)
	default:
		return nil, fmt.Errorf("unsupported STORE_URL scheme %q (expected memory: or mongodb://)", u.Scheme)
	}
}

func RedactedStoreURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid>"
	}

	switch strings.ToLower(u.Scheme) {
	case "memory":
		return "memory:"
	case "mongodb", "mongodb+srv":
		redacted := *u
		if redacted.User != nil {
			user := redacted.User.Username()
			redacted.User = url.UserPassword(user, "***")
		}
		return redacted.String()
	default:
		return "<unknown>"
	}
}

func splitPath(path string) (collection, id string, err error) {
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid document path %q (expected collection/id)", path)
	}
	return parts[0], parts[1], nil
}
