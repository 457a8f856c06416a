// Package chat keeps the per-event message log and its metadata
// (participants, unread counters, read states) in sync. The message
// append and the metadata update are two separate atomic operations, so
// a counter can transiently overshoot under concurrent sends; every
// subscriber receives the full authoritative state on the next update
// and self-corrects.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"gatherly-backend/internal/docstore"
	"gatherly-backend/internal/push"
)

const (
	fieldParticipants = "participants"
	fieldUnreadCounts = "unreadCounts"
	fieldReadStates   = "readStates"
	fieldLastText     = "lastMessageText"
	fieldLastSender   = "lastMessageSenderId"
	fieldLastAt       = "lastMessageAt"

	fieldChatID   = "chatId"
	fieldSenderID = "senderId"
	fieldText     = "text"
	fieldSentAt   = "sentAt"
)

// DefaultWindow bounds how much history a live view receives; older
// pagination is out of scope.
const DefaultWindow = 50

const (
	eventFieldInvited  = "attendeesInvited"
	eventFieldAccepted = "attendeesAccepted"
	eventFieldDeclined = "attendeesDeclined"
)

type Message struct {
	ID       string
	ChatID   string
	SenderID string
	Text     string
	SentAt   time.Time
}

type Service struct {
	store    docstore.Store
	notifier push.Notifier
	logger   *slog.Logger
}

func NewService(store docstore.Store, notifier push.Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger.With("component", "chat"),
	}
}

func chatPath(eventID string) string  { return "chats/" + eventID }
func messagePath(msgID string) string { return "messages/" + msgID }
func eventPath(eventID string) string { return "events/" + eventID }

// Send appends an immutable message with a store-assigned timestamp,
// then updates the chat metadata in one transaction: the event roster
// is unioned into participants, every other participant's unread count
// is incremented, and the sender's own count resets to zero.
func (s *Service) Send(ctx context.Context, eventID, senderID, text string) (Message, error) {
	msgID := uuid.NewString()
	if err := s.store.Set(ctx, messagePath(msgID), map[string]any{
		fieldChatID:   eventID,
		fieldSenderID: senderID,
		fieldText:     text,
		fieldSentAt:   docstore.ServerTimestamp,
	}, false); err != nil {
		return Message{}, err
	}

	var recipients []string
	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		event, err := tx.Get(eventPath(eventID))
		if err != nil {
			return err
		}

		participants := make(map[string]struct{})
		for _, f := range []string{eventFieldInvited, eventFieldAccepted, eventFieldDeclined} {
			for _, id := range docstore.Strings(event.Fields, f) {
				participants[id] = struct{}{}
			}
		}
		participants[senderID] = struct{}{}

		// The metadata document is created by the first send; existing
		// participants keep receiving counts even if they left the
		// roster since.
		if meta, err := tx.Get(chatPath(eventID)); err == nil {
			for _, id := range docstore.Strings(meta.Fields, fieldParticipants) {
				participants[id] = struct{}{}
			}
		}

		all := make([]any, 0, len(participants))
		fields := map[string]any{
			fieldLastText:   text,
			fieldLastSender: senderID,
			fieldLastAt:     docstore.ServerTimestamp,

			fieldUnreadCounts + "." + senderID: int64(0),
			fieldReadStates + "." + senderID:   docstore.ServerTimestamp,
		}
		recipients = recipients[:0]
		for id := range participants {
			all = append(all, id)
			if id == senderID {
				continue
			}
			fields[fieldUnreadCounts+"."+id] = docstore.Increment(1)
			recipients = append(recipients, id)
		}
		fields[fieldParticipants] = docstore.ArrayUnion(all...)

		tx.Set(chatPath(eventID), fields, true)
		return nil
	})
	if err != nil {
		return Message{}, err
	}

	for _, id := range recipients {
		s.notifier.Send(ctx, text, id, map[string]string{"eventId": eventID})
	}

	msg := Message{ID: msgID, ChatID: eventID, SenderID: senderID, Text: text}
	if doc, err := s.store.Get(ctx, messagePath(msgID)); err == nil {
		msg.SentAt = docstore.Time(doc.Fields, fieldSentAt)
	}
	return msg, nil
}

// MarkRead zeroes the user's unread counter and stamps their read
// state, regardless of how many messages arrived since.
func (s *Service) MarkRead(ctx context.Context, eventID, userID string) error {
	return s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		if _, err := tx.Get(chatPath(eventID)); err != nil {
			return err
		}
		tx.Set(chatPath(eventID), map[string]any{
			fieldUnreadCounts + "." + userID: int64(0),
			fieldReadStates + "." + userID:   docstore.ServerTimestamp,
		}, true)
		return nil
	})
}

// Recent returns the most recent messages for the event in
// chronological order, bounded by limit (DefaultWindow when zero).
func (s *Service) Recent(ctx context.Context, eventID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultWindow
	}

	docs, err := s.store.Query(ctx, "messages", []docstore.Predicate{
		docstore.Where(fieldChatID, docstore.OpEqual, eventID),
	}, 0)
	if err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(docs))
	for _, d := range docs {
		msgs = append(msgs, Message{
			ID:       d.ID,
			ChatID:   eventID,
			SenderID: docstore.String(d.Fields, fieldSenderID),
			Text:     docstore.String(d.Fields, fieldText),
			SentAt:   docstore.Time(d.Fields, fieldSentAt),
		})
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].SentAt.Before(msgs[j].SentAt) })
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// UnreadCount reads the user's current counter; missing chat metadata
// reads as zero.
func (s *Service) UnreadCount(ctx context.Context, eventID, userID string) (int64, error) {
	doc, err := s.store.Get(ctx, chatPath(eventID))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return docstore.IntMap(doc.Fields, fieldUnreadCounts)[userID], nil
}
