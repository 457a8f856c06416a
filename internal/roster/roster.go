// Package roster owns event membership: the invite/accept/decline/leave
// state machine and the migration of phone-number invitations onto user
// ids once a phone is linked to an account.
package roster

import (
	"context"
	"fmt"
	"log/slog"

	"gatherly-backend/internal/docstore"
	"gatherly-backend/internal/phone"
	"gatherly-backend/internal/push"
)

const (
	fieldHost           = "host"
	fieldInvited        = "attendeesInvited"
	fieldAccepted       = "attendeesAccepted"
	fieldDeclined       = "attendeesDeclined"
	fieldInvitedPhones  = "invitedPhoneNumbers"
	fieldAcceptedPhones = "acceptedPhoneNumbers"
	fieldDeclinedPhones = "declinedPhoneNumbers"
	fieldRSVPs          = "rsvps"
	fieldStartTime      = "startTime"
)

type Service struct {
	store    docstore.Store
	phones   phone.Normalizer
	notifier push.Notifier
	logger   *slog.Logger
}

func NewService(store docstore.Store, phones phone.Normalizer, notifier push.Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		phones:   phones,
		notifier: notifier,
		logger:   logger.With("component", "roster"),
	}
}

func eventPath(eventID string) string { return "events/" + eventID }
func userPath(userID string) string   { return "users/" + userID }

// Accept moves the user from invited to accepted. The user must be in
// the invited set; otherwise the transaction aborts with ErrNotFound
// and nothing is written.
func (s *Service) Accept(ctx context.Context, eventID, userID string) error {
	return s.transition(ctx, eventID, userID, fieldInvited, fieldAccepted)
}

// Decline moves the user from invited to declined.
func (s *Service) Decline(ctx context.Context, eventID, userID string) error {
	return s.transition(ctx, eventID, userID, fieldInvited, fieldDeclined)
}

// AcceptDeclined re-opts a previously declined user back in, moving
// them from declined to accepted.
func (s *Service) AcceptDeclined(ctx context.Context, eventID, userID string) error {
	return s.transition(ctx, eventID, userID, fieldDeclined, fieldAccepted)
}

// Leave removes the user from the event. The host abandons ownership
// (host cleared to empty); anyone else must currently be accepted and
// moves to declined.
func (s *Service) Leave(ctx context.Context, eventID, userID string) error {
	return s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		doc, err := tx.Get(eventPath(eventID))
		if err != nil {
			return err
		}
		if docstore.String(doc.Fields, fieldHost) == userID {
			tx.Set(eventPath(eventID), map[string]any{fieldHost: ""}, true)
			return nil
		}
		if !docstore.ContainsString(docstore.Strings(doc.Fields, fieldAccepted), userID) {
			return fmt.Errorf("%w: user %s is not attending event %s", docstore.ErrNotFound, userID, eventID)
		}
		tx.Set(eventPath(eventID), map[string]any{
			fieldAccepted: docstore.ArrayRemove(userID),
			fieldDeclined: docstore.ArrayUnion(userID),
		}, true)
		return nil
	})
}

func (s *Service) transition(ctx context.Context, eventID, userID, from, to string) error {
	return s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		doc, err := tx.Get(eventPath(eventID))
		if err != nil {
			return err
		}
		if !docstore.ContainsString(docstore.Strings(doc.Fields, from), userID) {
			return fmt.Errorf("%w: user %s has no %s entry for event %s", docstore.ErrNotFound, userID, from, eventID)
		}
		tx.Set(eventPath(eventID), map[string]any{
			from: docstore.ArrayRemove(userID),
			to:   docstore.ArrayUnion(userID),
		}, true)
		return nil
	})
}

// Invite adds user ids and raw phone numbers to the event's invited
// sets. Entries already present anywhere on the roster are skipped.
// Adds are append-if-absent merge writes; no transaction is needed.
func (s *Service) Invite(ctx context.Context, eventID string, userIDs, rawPhones []string) error {
	doc, err := s.store.Get(ctx, eventPath(eventID))
	if err != nil {
		return err
	}

	onRoster := make(map[string]struct{})
	for _, f := range []string{fieldInvited, fieldAccepted, fieldDeclined} {
		for _, id := range docstore.Strings(doc.Fields, f) {
			onRoster[id] = struct{}{}
		}
	}
	var newIDs []any
	var notifyIDs []string
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, ok := onRoster[id]; ok {
			continue
		}
		newIDs = append(newIDs, id)
		notifyIDs = append(notifyIDs, id)
	}

	knownPhones := make(map[string]struct{})
	for _, f := range []string{fieldInvitedPhones, fieldAcceptedPhones, fieldDeclinedPhones} {
		for _, p := range docstore.Strings(doc.Fields, f) {
			knownPhones[p] = struct{}{}
		}
	}
	var newPhones []any
	for _, raw := range rawPhones {
		canonical := s.phones.Canonicalize(raw)
		if canonical == "" {
			continue
		}
		if _, ok := knownPhones[canonical]; ok {
			continue
		}
		knownPhones[canonical] = struct{}{}
		newPhones = append(newPhones, canonical)
	}

	if len(newIDs) == 0 && len(newPhones) == 0 {
		return nil
	}

	changes := make(map[string]any)
	if len(newIDs) > 0 {
		changes[fieldInvited] = docstore.ArrayUnion(newIDs...)
	}
	if len(newPhones) > 0 {
		changes[fieldInvitedPhones] = docstore.ArrayUnion(newPhones...)
	}
	if err := s.store.Set(ctx, eventPath(eventID), changes, true); err != nil {
		return err
	}

	for _, id := range notifyIDs {
		s.notifier.Send(ctx, "You have a new event invite", id, map[string]string{"eventId": eventID})
	}
	return nil
}
