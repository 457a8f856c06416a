// Package auth resolves opaque bearer tokens to verified user ids.
// Token issuance (login, phone verification) lives outside this core;
// this package only looks up already-issued credentials.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"gatherly-backend/internal/docstore"
)

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

const collection = "authTokens"

type Verifier struct {
	store docstore.Store
	now   func() time.Time
}

func NewVerifier(store docstore.Store) *Verifier {
	return &Verifier{store: store, now: time.Now}
}

// Verify returns the user id a token belongs to.
func (v *Verifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrTokenInvalid
	}

	doc, err := v.store.Get(ctx, collection+"/"+token)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return "", ErrTokenInvalid
		}
		return "", err
	}

	expiresAt := docstore.Time(doc.Fields, "expiresAt")
	if !expiresAt.IsZero() && expiresAt.Before(v.now()) {
		return "", ErrTokenExpired
	}

	userID := docstore.String(doc.Fields, "userId")
	if userID == "" {
		return "", ErrTokenInvalid
	}
	return userID, nil
}

// Issue mints a token for a user. The auth collaborator normally does
// this; it exists here for tests and operational tooling.
func (v *Verifier) Issue(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	fields := map[string]any{
		"userId":    userID,
		"createdAt": docstore.ServerTimestamp,
	}
	if ttl > 0 {
		fields["expiresAt"] = v.now().Add(ttl)
	}
	if err := v.store.Set(ctx, collection+"/"+token, fields, false); err != nil {
		return "", err
	}
	return token, nil
}
