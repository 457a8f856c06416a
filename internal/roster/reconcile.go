package roster

import (
	"context"
	"fmt"

	"gatherly-backend/internal/docstore"
)

// LinkPhone records the user's canonical and E.164 phone, then migrates
// every phone-addressed invitation matching that number into a
// user-id-addressed one: invited/accepted/declined phone entries move
// to the corresponding user-id set, and legacy rsvp entries map true to
// accepted and false to declined.
//
// The scan walks every event. Per-event write failures are logged and
// skipped; the returned count covers only events actually migrated.
// Running twice is a no-op the second time.
func (s *Service) LinkPhone(ctx context.Context, userID, rawPhone string) (int, error) {
	canonical := s.phones.Canonicalize(rawPhone)
	if canonical == "" {
		return 0, fmt.Errorf("phone number has no digits")
	}

	if err := s.store.Set(ctx, userPath(userID), map[string]any{
		"phoneNumber": canonical,
		"phoneE164":   s.phones.ToE164(rawPhone),
	}, true); err != nil {
		return 0, err
	}

	// Full scan. Known scale limitation: a secondary index keyed by
	// canonical phone would avoid O(events) work per link.
	events, err := s.store.Query(ctx, "events", nil, 0)
	if err != nil {
		return 0, err
	}

	migrated := 0
	for _, ev := range events {
		changes := s.migrationChanges(ev.Fields, canonical, userID)
		if len(changes) == 0 {
			continue
		}
		if err := s.store.Set(ctx, ev.Path, changes, true); err != nil {
			s.logger.Warn("phone migration skipped event", "event", ev.ID, "error", err)
			continue
		}
		migrated++
	}
	return migrated, nil
}

func (s *Service) migrationChanges(fields map[string]any, canonical, userID string) map[string]any {
	changes := make(map[string]any)

	pairs := []struct {
		phoneField string
		userField  string
	}{
		{fieldInvitedPhones, fieldInvited},
		{fieldAcceptedPhones, fieldAccepted},
		{fieldDeclinedPhones, fieldDeclined},
	}
	for _, pair := range pairs {
		var matched []any
		for _, p := range docstore.Strings(fields, pair.phoneField) {
			if s.phones.Matches(p, canonical) {
				matched = append(matched, p)
			}
		}
		if len(matched) == 0 {
			continue
		}
		changes[pair.phoneField] = docstore.ArrayRemove(matched...)
		changes[pair.userField] = docstore.ArrayUnion(userID)
	}

	for p, accepted := range docstore.BoolMap(fields, fieldRSVPs) {
		if !s.phones.Matches(p, canonical) {
			continue
		}
		changes[fieldRSVPs+"."+p] = docstore.Delete
		if accepted {
			changes[fieldAccepted] = docstore.ArrayUnion(userID)
		} else {
			changes[fieldDeclined] = docstore.ArrayUnion(userID)
		}
	}

	return changes
}
