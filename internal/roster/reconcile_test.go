package roster

import (
	"context"
	"testing"

	"gatherly-backend/internal/docstore"
)

func TestLinkPhone_MigratesInvitedPhoneToUserID(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedEvent(t, store, "evt1", map[string]any{
		fieldInvitedPhones: []any{"6505551234"},
	})

	migrated, err := svc.LinkPhone(ctx, "userU", "+16505551234")
	if err != nil {
		t.Fatalf("LinkPhone() error = %v", err)
	}
	if migrated != 1 {
		t.Fatalf("migrated = %d, want 1", migrated)
	}

	if got := eventStrings(t, store, "evt1", fieldInvitedPhones); len(got) != 0 {
		t.Fatalf("invitedPhoneNumbers = %v, want empty", got)
	}
	if got := eventStrings(t, store, "evt1", fieldInvited); len(got) != 1 || got[0] != "userU" {
		t.Fatalf("attendeesInvited = %v, want [userU]", got)
	}

	user, err := store.Get(ctx, "users/userU")
	if err != nil {
		t.Fatalf("Get(user) error = %v", err)
	}
	if got := docstore.String(user.Fields, "phoneNumber"); got != "6505551234" {
		t.Fatalf("phoneNumber = %q, want %q", got, "6505551234")
	}
	if got := docstore.String(user.Fields, "phoneE164"); got != "+16505551234" {
		t.Fatalf("phoneE164 = %q, want %q", got, "+16505551234")
	}
}

func TestLinkPhone_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedEvent(t, store, "evt1", map[string]any{
		fieldInvitedPhones: []any{"6505551234"},
	})

	if _, err := svc.LinkPhone(ctx, "userU", "+16505551234"); err != nil {
		t.Fatalf("first LinkPhone() error = %v", err)
	}
	migrated, err := svc.LinkPhone(ctx, "userU", "+16505551234")
	if err != nil {
		t.Fatalf("second LinkPhone() error = %v", err)
	}
	if migrated != 0 {
		t.Fatalf("second run migrated = %d, want 0", migrated)
	}

	if got := eventStrings(t, store, "evt1", fieldInvited); len(got) != 1 || got[0] != "userU" {
		t.Fatalf("attendeesInvited = %v, want [userU]", got)
	}
}

func TestLinkPhone_MigratesLegacyRSVPs(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedEvent(t, store, "evtYes", map[string]any{
		fieldRSVPs: map[string]any{"6505551234": true},
	})
	seedEvent(t, store, "evtNo", map[string]any{
		fieldRSVPs: map[string]any{"6505551234": false},
	})

	migrated, err := svc.LinkPhone(ctx, "userU", "6505551234")
	if err != nil {
		t.Fatalf("LinkPhone() error = %v", err)
	}
	if migrated != 2 {
		t.Fatalf("migrated = %d, want 2", migrated)
	}

	if got := eventStrings(t, store, "evtYes", fieldAccepted); len(got) != 1 || got[0] != "userU" {
		t.Fatalf("evtYes accepted = %v, want [userU]", got)
	}
	if got := eventStrings(t, store, "evtNo", fieldDeclined); len(got) != 1 || got[0] != "userU" {
		t.Fatalf("evtNo declined = %v, want [userU]", got)
	}

	doc, err := store.Get(ctx, "events/evtYes")
	if err != nil {
		t.Fatalf("Get(evtYes) error = %v", err)
	}
	if rsvps := docstore.BoolMap(doc.Fields, fieldRSVPs); len(rsvps) != 0 {
		t.Fatalf("rsvps = %v, want empty after migration", rsvps)
	}
}

func TestLinkPhone_MatchesSuffixStoredWithoutCountryCode(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	// Legacy record stored the number as a bare 7-digit suffix.
	seedEvent(t, store, "evt1", map[string]any{
		fieldAcceptedPhones: []any{"5551234"},
	})

	migrated, err := svc.LinkPhone(ctx, "userU", "+16505551234")
	if err != nil {
		t.Fatalf("LinkPhone() error = %v", err)
	}
	if migrated != 1 {
		t.Fatalf("migrated = %d, want 1", migrated)
	}
	if got := eventStrings(t, store, "evt1", fieldAccepted); len(got) != 1 || got[0] != "userU" {
		t.Fatalf("accepted = %v, want [userU]", got)
	}
}

func TestLinkPhone_RejectsDigitlessInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	if _, err := svc.LinkPhone(ctx, "userU", "no digits"); err == nil {
		t.Fatalf("expected error for digitless phone")
	}
}
