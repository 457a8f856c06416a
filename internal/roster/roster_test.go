package roster

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"gatherly-backend/internal/docstore"
	"gatherly-backend/internal/phone"
	"gatherly-backend/internal/push"
)

func newTestService(t *testing.T) (*Service, *docstore.Memory) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := docstore.NewMemory(logger)
	return NewService(store, phone.NewNormalizer("1"), push.Noop{}, logger), store
}

func seedEvent(t *testing.T, store *docstore.Memory, eventID string, fields map[string]any) {
	t.Helper()
	if err := store.Set(context.Background(), "events/"+eventID, fields, false); err != nil {
		t.Fatalf("seed event: %v", err)
	}
}

func eventStrings(t *testing.T, store *docstore.Memory, eventID, field string) []string {
	t.Helper()
	doc, err := store.Get(context.Background(), "events/"+eventID)
	if err != nil {
		t.Fatalf("Get(event) error = %v", err)
	}
	return docstore.Strings(doc.Fields, field)
}

func TestAccept_MovesInvitedToAccepted(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedEvent(t, store, "evt1", map[string]any{
		fieldInvited: []any{"userA"},
	})

	if err := svc.Accept(ctx, "evt1", "userA"); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	if got := eventStrings(t, store, "evt1", fieldInvited); len(got) != 0 {
		t.Fatalf("invited = %v, want empty", got)
	}
	if got := eventStrings(t, store, "evt1", fieldAccepted); len(got) != 1 || got[0] != "userA" {
		t.Fatalf("accepted = %v, want [userA]", got)
	}
}

func TestAccept_SecondCallFailsNotFoundAndLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedEvent(t, store, "evt1", map[string]any{
		fieldInvited: []any{"userA"},
	})

	if err := svc.Accept(ctx, "evt1", "userA"); err != nil {
		t.Fatalf("first Accept() error = %v", err)
	}
	err := svc.Accept(ctx, "evt1", "userA")
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("second Accept() error = %v, want ErrNotFound", err)
	}

	if got := eventStrings(t, store, "evt1", fieldAccepted); len(got) != 1 || got[0] != "userA" {
		t.Fatalf("accepted = %v, want [userA]", got)
	}
	if got := eventStrings(t, store, "evt1", fieldDeclined); len(got) != 0 {
		t.Fatalf("declined = %v, want empty", got)
	}
}

func TestDecline_MovesInvitedToDeclined(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedEvent(t, store, "evt1", map[string]any{
		fieldInvited: []any{"userA"},
	})

	if err := svc.Decline(ctx, "evt1", "userA"); err != nil {
		t.Fatalf("Decline() error = %v", err)
	}
	if got := eventStrings(t, store, "evt1", fieldDeclined); len(got) != 1 || got[0] != "userA" {
		t.Fatalf("declined = %v, want [userA]", got)
	}
}

func TestAcceptDeclined_ReoptsIn(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedEvent(t, store, "evt1", map[string]any{
		fieldDeclined: []any{"userA"},
	})

	if err := svc.AcceptDeclined(ctx, "evt1", "userA"); err != nil {
		t.Fatalf("AcceptDeclined() error = %v", err)
	}
	if got := eventStrings(t, store, "evt1", fieldAccepted); len(got) != 1 || got[0] != "userA" {
		t.Fatalf("accepted = %v, want [userA]", got)
	}
	if got := eventStrings(t, store, "evt1", fieldDeclined); len(got) != 0 {
		t.Fatalf("declined = %v, want empty", got)
	}

	if err := svc.AcceptDeclined(ctx, "evt1", "userA"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("second AcceptDeclined() error = %v, want ErrNotFound", err)
	}
}

func TestLeave_NonHostMovesAcceptedToDeclined(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedEvent(t, store, "evt1", map[string]any{
		fieldHost:     "hostUser",
		fieldAccepted: []any{"userA"},
	})

	if err := svc.Leave(ctx, "evt1", "userA"); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	if got := eventStrings(t, store, "evt1", fieldDeclined); len(got) != 1 || got[0] != "userA" {
		t.Fatalf("declined = %v, want [userA]", got)
	}

	// Already declined: a second leave is a no-op failure.
	if err := svc.Leave(ctx, "evt1", "userA"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("second Leave() error = %v, want ErrNotFound", err)
	}
}

func TestLeave_HostClearsHostField(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedEvent(t, store, "evt1", map[string]any{
		fieldHost:     "hostUser",
		fieldAccepted: []any{"hostUser", "userA"},
	})

	if err := svc.Leave(ctx, "evt1", "hostUser"); err != nil {
		t.Fatalf("Leave(host) error = %v", err)
	}

	doc, err := store.Get(ctx, "events/evt1")
	if err != nil {
		t.Fatalf("Get(event) error = %v", err)
	}
	if got := docstore.String(doc.Fields, fieldHost); got != "" {
		t.Fatalf("host = %q, want empty", got)
	}
	// The host path does not touch membership sets.
	if got := docstore.Strings(doc.Fields, fieldAccepted); len(got) != 2 {
		t.Fatalf("accepted = %v, want unchanged", got)
	}
}

func TestTransition_MissingEventFailsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	if err := svc.Accept(ctx, "missing", "userA"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Accept(missing event) error = %v, want ErrNotFound", err)
	}
}

func TestInvite_SkipsRosterMembersAndKnownPhones(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedEvent(t, store, "evt1", map[string]any{
		fieldAccepted:      []any{"userA"},
		fieldInvitedPhones: []any{"6505551234"},
	})

	err := svc.Invite(ctx, "evt1", []string{"userA", "userB"}, []string{"+1 (650) 555-1234", "650-555-9999"})
	if err != nil {
		t.Fatalf("Invite() error = %v", err)
	}

	if got := eventStrings(t, store, "evt1", fieldInvited); len(got) != 1 || got[0] != "userB" {
		t.Fatalf("invited = %v, want [userB]", got)
	}
	phones := eventStrings(t, store, "evt1", fieldInvitedPhones)
	if len(phones) != 2 || phones[0] != "6505551234" || phones[1] != "6505559999" {
		t.Fatalf("invitedPhoneNumbers = %v, want [6505551234 6505559999]", phones)
	}
}
