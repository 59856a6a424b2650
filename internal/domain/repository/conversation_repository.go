package repository

import (
	"context"
	"sync"

	"talentline/internal/domain/entity"
)

// ConversationUpdate is one full-snapshot notification from a conversation
// watch. The store delivers complete result sets, not deltas: consumers
// replace their state wholesale. Err is set instead of the slice when the
// underlying listener fails; the watch delivers no further updates after an
// error.
type ConversationUpdate struct {
	Conversations []*entity.Conversation
	Err           error
}

// MessageUpdate is the message-stream counterpart of ConversationUpdate.
type MessageUpdate struct {
	Messages []*entity.Message
	Err      error
}

// ConversationWatch is a cancellable handle on a live conversation query.
// Close stops the listener and closes the update channel; it is safe to call
// more than once.
type ConversationWatch struct {
	updates <-chan ConversationUpdate
	stop    func()
	once    sync.Once
}

func NewConversationWatch(updates <-chan ConversationUpdate, stop func()) *ConversationWatch {
	return &ConversationWatch{updates: updates, stop: stop}
}

func (w *ConversationWatch) Updates() <-chan ConversationUpdate { return w.updates }

func (w *ConversationWatch) Close() {
	w.once.Do(w.stop)
}

// MessageWatch is a cancellable handle on a live message query.
type MessageWatch struct {
	updates <-chan MessageUpdate
	stop    func()
	once    sync.Once
}

func NewMessageWatch(updates <-chan MessageUpdate, stop func()) *MessageWatch {
	return &MessageWatch{updates: updates, stop: stop}
}

func (w *MessageWatch) Updates() <-chan MessageUpdate { return w.updates }

func (w *MessageWatch) Close() {
	w.once.Do(w.stop)
}

type ConversationRepository interface {
	// Create inserts a conversation under its deterministic id and fails
	// with CONFLICT if the document already exists.
	Create(ctx context.Context, conversation *entity.Conversation) error
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	ListByParticipant(ctx context.Context, actorID string) ([]*entity.Conversation, error)

	// AppendMessage persists the message and the conversation summary
	// (lastMessage, lastMessageAt, receiver unread count) as one atomic
	// write.
	AppendMessage(ctx context.Context, message *entity.Message, summary string) error
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error)
	MarkRead(ctx context.Context, conversationID, actorID string) error

	// WatchByParticipant opens a continuous query over the conversations
	// containing actorID. WatchMessages opens one over a conversation's
	// messages ordered by sentAt ascending.
	WatchByParticipant(ctx context.Context, actorID string) (*ConversationWatch, error)
	WatchMessages(ctx context.Context, conversationID string) (*MessageWatch, error)
}
