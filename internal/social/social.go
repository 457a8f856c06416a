// Package social manages the friend graph. Friendship is represented
// as per-user lists and is only eventually symmetric: each operation
// issues independent merge writes per side, and every individual write
// is idempotent.
package social

import (
	"context"
	"log/slog"

	"gatherly-backend/internal/docstore"
	"gatherly-backend/internal/push"
)

const (
	fieldFriends      = "friends"
	fieldRequests     = "requests"
	fieldRequestsSent = "requestsSent"
)

type Service struct {
	store    docstore.Store
	notifier push.Notifier
	logger   *slog.Logger
}

func NewService(store docstore.Store, notifier push.Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger.With("component", "social"),
	}
}

func userPath(userID string) string { return "users/" + userID }

// SendRequest records a pending request on both sides. The two writes
// are independent; a brief window can exist where only one side is
// updated. Self-requests are not rejected here — callers must prevent
// them.
func (s *Service) SendRequest(ctx context.Context, senderID, receiverID string) error {
	if err := s.store.Set(ctx, userPath(receiverID), map[string]any{
		fieldRequests: docstore.ArrayUnion(senderID),
	}, true); err != nil {
		return err
	}
	if err := s.store.Set(ctx, userPath(senderID), map[string]any{
		fieldRequestsSent: docstore.ArrayUnion(receiverID),
	}, true); err != nil {
		return err
	}

	s.notifier.Send(ctx, "You have a new friend request", receiverID, map[string]string{"userId": senderID})
	return nil
}

// Accept makes the two users friends and then clears the pending
// request pair best-effort: a failed cleanup is logged, not surfaced,
// since the friendship itself is already recorded.
func (s *Service) Accept(ctx context.Context, senderID, receiverID string) error {
	if err := s.store.Set(ctx, userPath(receiverID), map[string]any{
		fieldFriends: docstore.ArrayUnion(senderID),
	}, true); err != nil {
		return err
	}
	if err := s.store.Set(ctx, userPath(senderID), map[string]any{
		fieldFriends: docstore.ArrayUnion(receiverID),
	}, true); err != nil {
		return err
	}

	if err := s.store.Set(ctx, userPath(receiverID), map[string]any{
		fieldRequests: docstore.ArrayRemove(senderID),
	}, true); err != nil {
		s.logger.Warn("request cleanup failed", "user", receiverID, "error", err)
	}
	if err := s.store.Set(ctx, userPath(senderID), map[string]any{
		fieldRequestsSent: docstore.ArrayRemove(receiverID),
	}, true); err != nil {
		s.logger.Warn("request cleanup failed", "user", senderID, "error", err)
	}

	s.notifier.Send(ctx, "Your friend request was accepted", senderID, map[string]string{"userId": receiverID})
	return nil
}

// Remove deletes the friendship from both sides. Pending requests are
// untouched.
func (s *Service) Remove(ctx context.Context, userA, userB string) error {
	if err := s.store.Set(ctx, userPath(userA), map[string]any{
		fieldFriends: docstore.ArrayRemove(userB),
	}, true); err != nil {
		return err
	}
	return s.store.Set(ctx, userPath(userB), map[string]any{
		fieldFriends: docstore.ArrayRemove(userA),
	}, true)
}

// PendingRequests returns the user's incoming request list.
func (s *Service) PendingRequests(ctx context.Context, userID string) ([]string, error) {
	doc, err := s.store.Get(ctx, userPath(userID))
	if err != nil {
		return nil, err
	}
	return docstore.Strings(doc.Fields, fieldRequests), nil
}

// Friends returns the user's friend list.
func (s *Service) Friends(ctx context.Context, userID string) ([]string, error) {
	doc, err := s.store.Get(ctx, userPath(userID))
	if err != nil {
		return nil, err
	}
	return docstore.Strings(doc.Fields, fieldFriends), nil
}
