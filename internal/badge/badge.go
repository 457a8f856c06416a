// Package badge computes the single number shown on the app icon:
// upcoming invites plus pending friend requests. Entirely read-based;
// a few seconds of staleness is fine for a badge, so no transaction is
// taken and individual query failures degrade to zero contributions.
package badge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gatherly-backend/internal/docstore"
)

type Service struct {
	store  docstore.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store docstore.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With("component", "badge"),
		now:    time.Now,
	}
}

// Badge resolves the identifier (a user id, or an auth id via the
// fallback query) and returns upcoming-invited events plus pending
// friend requests.
func (s *Service) Badge(ctx context.Context, identifier string) (int, error) {
	user, err := s.resolve(ctx, identifier)
	if err != nil {
		return 0, err
	}

	userID := user.ID
	canonicalPhone := docstore.String(user.Fields, "phoneNumber")

	invited := make(map[string]map[string]any)
	docs, err := s.store.Query(ctx, "events", []docstore.Predicate{
		docstore.Where("attendeesInvited", docstore.OpArrayContains, userID),
	}, 0)
	if err != nil {
		s.logger.Warn("badge invite query failed", "user", userID, "error", err)
	}
	for _, d := range docs {
		invited[d.ID] = d.Fields
	}

	if canonicalPhone != "" {
		docs, err := s.store.Query(ctx, "events", []docstore.Predicate{
			docstore.Where("invitedPhoneNumbers", docstore.OpArrayContains, canonicalPhone),
		}, 0)
		if err != nil {
			s.logger.Warn("badge phone-invite query failed", "user", userID, "error", err)
		}
		for _, d := range docs {
			invited[d.ID] = d.Fields
		}
	}

	now := s.now()
	upcoming := 0
	for _, fields := range invited {
		if start := docstore.Time(fields, "startTime"); !start.Before(now) {
			upcoming++
		}
	}

	pending := len(docstore.Strings(user.Fields, "requests"))
	return upcoming + pending, nil
}

// resolve looks the identifier up as a document id first, then falls
// back to the alternate auth-id field.
func (s *Service) resolve(ctx context.Context, identifier string) (docstore.Document, error) {
	doc, err := s.store.Get(ctx, "users/"+identifier)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return docstore.Document{}, err
	}

	docs, err := s.store.Query(ctx, "users", []docstore.Predicate{
		docstore.Where("authId", docstore.OpEqual, identifier),
	}, 1)
	if err != nil {
		return docstore.Document{}, err
	}
	if len(docs) == 0 {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return docs[0], nil
}
