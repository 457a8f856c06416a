package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gatherly-backend/internal/auth"
	"gatherly-backend/internal/badge"
	"gatherly-backend/internal/chat"
	"gatherly-backend/internal/docstore"
	"gatherly-backend/internal/phone"
	"gatherly-backend/internal/push"
	"gatherly-backend/internal/roster"
	"gatherly-backend/internal/social"
	"gatherly-backend/internal/ws"
)

type testEnv struct {
	store    *docstore.Memory
	verifier *auth.Verifier
	srv      *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := docstore.NewMemory(logger)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	phones := phone.NewNormalizer("1")
	notifier := push.Noop{}
	verifier := auth.NewVerifier(store)

	svcs := Services{
		Roster: roster.NewService(store, phones, notifier, logger),
		Social: social.NewService(store, notifier, logger),
		Chat:   chat.NewService(store, notifier, logger),
		Badge:  badge.NewService(store, logger),
	}

	hub := ws.NewHub(logger, verifierAdapter{verifier}, store)
	handler := NewHandler(logger, store, verifier, hub, svcs)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testEnv{store: store, verifier: verifier, srv: srv}
}

type verifierAdapter struct {
	verifier *auth.Verifier
}

func (a verifierAdapter) ValidateToken(ctx context.Context, token string) (string, error) {
	return a.verifier.Verify(ctx, token)
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.verifier.Issue(context.Background(), userID, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	return res
}

func decodeBody(t *testing.T, res *http.Response, v any) {
	t.Helper()
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		t.Fatalf("decode response error = %v", err)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	res, err := http.Get(env.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t)

	res, err := http.Get(env.srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz error = %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	res := env.do(t, http.MethodGet, "/v1/badge", "", "")
	defer res.Body.Close()

	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}

	var body apiErrorResponse
	decodeBody(t, res, &body)
	if body.Error.Code != ErrCodeTokenInvalid {
		t.Fatalf("error code = %q, want %q", body.Error.Code, ErrCodeTokenInvalid)
	}
}

func TestEventAccept_MovesInvitedToAccepted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.store.Set(ctx, "events/ev1", map[string]any{
		"host":              "hostUser",
		"attendeesInvited":  []any{"alice"},
		"attendeesAccepted": []any{},
		"attendeesDeclined": []any{},
	}, false); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	res := env.do(t, http.MethodPost, "/v1/events/ev1/accept", env.token(t, "alice"), "")
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	doc, err := env.store.Get(ctx, "events/ev1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !docstore.ContainsString(docstore.Strings(doc.Fields, "attendeesAccepted"), "alice") {
		t.Fatalf("alice not in attendeesAccepted: %v", doc.Fields)
	}
	if docstore.ContainsString(docstore.Strings(doc.Fields, "attendeesInvited"), "alice") {
		t.Fatalf("alice still in attendeesInvited: %v", doc.Fields)
	}
}

func TestEventAccept_NotInvitedIs404(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.store.Set(ctx, "events/ev1", map[string]any{
		"attendeesInvited": []any{"bob"},
	}, false); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	res := env.do(t, http.MethodPost, "/v1/events/ev1/accept", env.token(t, "alice"), "")
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestLinkPhone_ReturnsMigratedCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.store.Set(ctx, "users/alice", map[string]any{}, false); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := env.store.Set(ctx, "events/ev1", map[string]any{
		"invitedPhoneNumbers": []any{"6505551234"},
	}, false); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	res := env.do(t, http.MethodPost, "/v1/me/phone", env.token(t, "alice"), `{"phoneNumber":"+1 (650) 555-1234"}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var body linkPhoneResponse
	decodeBody(t, res, &body)
	if body.MigratedEvents != 1 {
		t.Fatalf("migratedEvents = %d, want 1", body.MigratedEvents)
	}

	doc, err := env.store.Get(ctx, "events/ev1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !docstore.ContainsString(docstore.Strings(doc.Fields, "attendeesInvited"), "alice") {
		t.Fatalf("alice not migrated into attendeesInvited: %v", doc.Fields)
	}
}

func TestFriendRequest_SelfIsRejected(t *testing.T) {
	env := newTestEnv(t)

	res := env.do(t, http.MethodPost, "/v1/friends/requests", env.token(t, "alice"), `{"userId":"alice"}`)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}

	var body apiErrorResponse
	decodeBody(t, res, &body)
	if body.Error.Code != ErrCodeCannotFriendSelf {
		t.Fatalf("error code = %q, want %q", body.Error.Code, ErrCodeCannotFriendSelf)
	}
}

func TestFriendFlow_SendAcceptListRemove(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.token(t, "alice")
	bobToken := env.token(t, "bob")

	res := env.do(t, http.MethodPost, "/v1/friends/requests", aliceToken, `{"userId":"bob"}`)
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("send request status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	res = env.do(t, http.MethodGet, "/v1/friends/requests", bobToken, "")
	var pending listRequestsResponse
	decodeBody(t, res, &pending)
	if len(pending.Requests) != 1 || pending.Requests[0] != "alice" {
		t.Fatalf("requests = %v, want [alice]", pending.Requests)
	}

	res = env.do(t, http.MethodPost, "/v1/friends/requests/accept", bobToken, `{"userId":"alice"}`)
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	res = env.do(t, http.MethodGet, "/v1/friends", aliceToken, "")
	var friends listFriendsResponse
	decodeBody(t, res, &friends)
	if len(friends.Friends) != 1 || friends.Friends[0] != "bob" {
		t.Fatalf("friends = %v, want [bob]", friends.Friends)
	}

	res = env.do(t, http.MethodDelete, "/v1/friends/bob", aliceToken, "")
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("remove status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	res = env.do(t, http.MethodGet, "/v1/friends", aliceToken, "")
	decodeBody(t, res, &friends)
	if len(friends.Friends) != 0 {
		t.Fatalf("friends after remove = %v, want empty", friends.Friends)
	}
}

func TestChatFlow_SendListRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.store.Set(ctx, "events/ev1", map[string]any{
		"attendeesAccepted": []any{"alice", "bob"},
	}, false); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	aliceToken := env.token(t, "alice")
	bobToken := env.token(t, "bob")

	res := env.do(t, http.MethodPost, "/v1/chats/ev1/messages", aliceToken, `{"text":"who is bringing snacks?"}`)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("send status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var sent messageResponse
	decodeBody(t, res, &sent)
	if sent.ID == "" || sent.SenderID != "alice" {
		t.Fatalf("message = %+v, want non-empty id and sender alice", sent)
	}

	res = env.do(t, http.MethodGet, "/v1/chats/ev1/messages", bobToken, "")
	var list listMessagesResponse
	decodeBody(t, res, &list)
	if len(list.Messages) != 1 || list.Messages[0].Text != "who is bringing snacks?" {
		t.Fatalf("messages = %+v, want the sent message", list.Messages)
	}

	res = env.do(t, http.MethodPost, "/v1/chats/ev1/read", bobToken, "")
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("read status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	doc, err := env.store.Get(ctx, "chats/ev1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	counts := docstore.IntMap(doc.Fields, "unreadCounts")
	if counts["bob"] != 0 {
		t.Fatalf("unreadCounts[bob] = %d, want 0", counts["bob"])
	}
}

func TestChatSend_MissingEventIs404(t *testing.T) {
	env := newTestEnv(t)

	res := env.do(t, http.MethodPost, "/v1/chats/nope/messages", env.token(t, "alice"), `{"text":"hi"}`)
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestBadge_CountsInvitesAndRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	future := time.Now().Add(24 * time.Hour)
	if err := env.store.Set(ctx, "users/alice", map[string]any{
		"requests": []any{"bob"},
	}, false); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := env.store.Set(ctx, "events/ev1", map[string]any{
		"attendeesInvited": []any{"alice"},
		"startTime":        future,
	}, false); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	res := env.do(t, http.MethodGet, "/v1/badge", env.token(t, "alice"), "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var body badgeResponse
	decodeBody(t, res, &body)
	if body.Count != 2 {
		t.Fatalf("count = %d, want 2", body.Count)
	}
}

func TestUnknownInviteAction_Is404(t *testing.T) {
	env := newTestEnv(t)

	res := env.do(t, http.MethodPost, "/v1/events/ev1/promote", env.token(t, "alice"), "")
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestInvite_RequiresBody(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.store.Set(ctx, "events/ev1", map[string]any{
		"attendeesAccepted": []any{"alice"},
	}, false); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	res := env.do(t, http.MethodPost, "/v1/events/ev1/invite", env.token(t, "alice"), `{}`)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}

	var body apiErrorResponse
	decodeBody(t, res, &body)
	if body.Error.Code != ErrCodeValidation {
		t.Fatalf("error code = %q, want %q", body.Error.Code, ErrCodeValidation)
	}
}
