package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"talentline/internal/domain/entity"
	"talentline/internal/domain/repository"
	ws "talentline/internal/infrastructure/websocket"
	"talentline/pkg/logger"
)

// ConversationView is a conversation as the recruiter UI renders it: the
// peer's denormalized display data plus the list-ordering fields.
type ConversationView struct {
	ID            string    `json:"id"`
	PeerID        string    `json:"peer_id"`
	PeerName      string    `json:"peer_name"`
	PeerAvatar    string    `json:"peer_avatar,omitempty"`
	LastMessage   string    `json:"last_message,omitempty"`
	LastMessageAt time.Time `json:"last_message_at"`
	Unread        int       `json:"unread"`
}

// MessageView is a message normalized for rendering: caption text with the
// attachment extracted, and IsUser computed against the session's actor.
type MessageView struct {
	ID         string             `json:"id"`
	SenderID   string             `json:"sender_id"`
	ReceiverID string             `json:"receiver_id"`
	Text       string             `json:"text"`
	Attachment *entity.Attachment `json:"attachment,omitempty"`
	SentAt     time.Time          `json:"sent_at"`
	IsUser     bool               `json:"is_user"`
	Read       bool               `json:"read"`
}

// Event types pushed to the UI over the actor's WebSocket connections.
const (
	EventConversationList     = "conversation_list"
	EventMessages             = "messages"
	EventConversationSelected = "conversation_selected"
	EventSyncError            = "sync_error"
)

type sessionEvent struct {
	Type           string             `json:"type"`
	ConversationID string             `json:"conversation_id,omitempty"`
	Conversations  []ConversationView `json:"conversations,omitempty"`
	Messages       []MessageView      `json:"messages,omitempty"`
	Scope          string             `json:"scope,omitempty"`
	Message        string             `json:"message,omitempty"`
}

// ChatSession owns one signed-in actor's live chat state: the conversation
// list watch, at most one message stream watch, and the read-through caches
// behind both. It is created when the actor connects and closed on sign-out;
// Close tears down the listeners and discards the caches.
type ChatSession struct {
	actorID string
	repo    repository.ConversationRepository
	ws      *ws.Manager

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.RWMutex
	conversations []ConversationView
	messages      []MessageView
	selected      string
	pendingID     string
	listErr       error
	streamErr     error
	convWatch     *repository.ConversationWatch
	msgWatch      *repository.MessageWatch
}

func NewChatSession(actorID string, repo repository.ConversationRepository, wsManager *ws.Manager) *ChatSession {
	return &ChatSession{
		actorID: actorID,
		repo:    repo,
		ws:      wsManager,
	}
}

// Start opens the conversation list subscription. The list is rebuilt
// wholesale on every notification: the store delivers full snapshots, and
// each one is treated as authoritative.
func (s *ChatSession) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	watch, err := s.repo.WatchByParticipant(s.ctx, s.actorID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.convWatch = watch
	s.mu.Unlock()

	go s.consumeConversations(watch)
	return nil
}

func (s *ChatSession) consumeConversations(watch *repository.ConversationWatch) {
	for update := range watch.Updates() {
		if update.Err != nil {
			s.mu.Lock()
			s.listErr = update.Err
			s.conversations = nil
			s.mu.Unlock()
			logger.Warn("Conversation sync for actor %s degraded: %v", s.actorID, update.Err)
			s.push(sessionEvent{Type: EventSyncError, Scope: "conversations", Message: update.Err.Error()})
			return
		}

		views := s.buildConversationViews(update.Conversations)

		s.mu.Lock()
		s.listErr = nil
		s.conversations = views
		pending := s.pendingID
		autoSelect := ""
		if pending != "" {
			for _, v := range views {
				if v.ID == pending {
					autoSelect = pending
					s.pendingID = ""
					break
				}
			}
		}
		s.mu.Unlock()

		s.push(sessionEvent{Type: EventConversationList, Conversations: views})

		// The conversation this actor just created has come back through
		// the read subscription; select it now.
		if autoSelect != "" {
			if err := s.Select(autoSelect); err != nil {
				logger.Error("Auto-select of conversation %s failed: %v", autoSelect, err)
				continue
			}
			s.push(sessionEvent{Type: EventConversationSelected, ConversationID: autoSelect})
		}
	}
}

// Select switches the live message stream to conversationID. The previous
// watch is closed before the new one is opened, so at most one message
// subscription is active at a time; the empty id just tears down.
func (s *ChatSession) Select(conversationID string) error {
	s.mu.Lock()
	if s.msgWatch != nil {
		s.msgWatch.Close()
		s.msgWatch = nil
	}
	s.messages = nil
	s.streamErr = nil
	s.selected = conversationID
	s.mu.Unlock()

	if conversationID == "" {
		s.push(sessionEvent{Type: EventMessages, ConversationID: "", Messages: nil})
		return nil
	}

	watch, err := s.repo.WatchMessages(s.ctx, conversationID)
	if err != nil {
		s.mu.Lock()
		s.streamErr = err
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.selected != conversationID {
		// A later Select raced in while we were subscribing.
		s.mu.Unlock()
		watch.Close()
		return nil
	}
	s.msgWatch = watch
	s.mu.Unlock()

	go s.consumeMessages(watch, conversationID)
	return nil
}

func (s *ChatSession) consumeMessages(watch *repository.MessageWatch, conversationID string) {
	for update := range watch.Updates() {
		s.mu.Lock()
		if s.msgWatch != watch {
			// Torn down; this update belongs to a stale selection.
			s.mu.Unlock()
			return
		}

		if update.Err != nil {
			s.streamErr = update.Err
			s.messages = nil
			s.mu.Unlock()
			logger.Warn("Message sync for conversation %s degraded: %v", conversationID, update.Err)
			s.push(sessionEvent{Type: EventSyncError, Scope: "messages", ConversationID: conversationID, Message: update.Err.Error()})
			return
		}

		views := s.buildMessageViews(update.Messages)
		s.streamErr = nil
		s.messages = views
		s.mu.Unlock()

		s.push(sessionEvent{Type: EventMessages, ConversationID: conversationID, Messages: views})
	}
}

// SetPending records a conversation the actor just created, to be selected
// once its id shows up in the list subscription. If the conversation is
// already in the list the selection happens immediately.
func (s *ChatSession) SetPending(conversationID string) {
	s.mu.Lock()
	present := false
	for _, v := range s.conversations {
		if v.ID == conversationID {
			present = true
			break
		}
	}
	if !present {
		s.pendingID = conversationID
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.Select(conversationID); err != nil {
		logger.Error("Select of conversation %s failed: %v", conversationID, err)
		return
	}
	s.push(sessionEvent{Type: EventConversationSelected, ConversationID: conversationID})
}

func (s *ChatSession) buildConversationViews(conversations []*entity.Conversation) []ConversationView {
	views := make([]ConversationView, 0, len(conversations))
	for _, c := range conversations {
		peer, err := c.OtherParticipant(s.actorID)
		if err != nil {
			logger.Warn("Skipping conversation %s with no counterpart for actor %s", c.ID, s.actorID)
			continue
		}
		views = append(views, ConversationView{
			ID:            c.ID,
			PeerID:        peer,
			PeerName:      c.ParticipantNames[peer],
			PeerAvatar:    c.ParticipantAvatars[peer],
			LastMessage:   c.LastMessage,
			LastMessageAt: c.LastMessageAt,
			Unread:        c.UnreadCount[s.actorID],
		})
	}

	// Most recent activity first; ties broken by id for a deterministic
	// order. Sorted here, not server-side, to avoid a composite index on
	// the participant filter.
	sort.Slice(views, func(i, j int) bool {
		if !views[i].LastMessageAt.Equal(views[j].LastMessageAt) {
			return views[i].LastMessageAt.After(views[j].LastMessageAt)
		}
		return views[i].ID < views[j].ID
	})

	return views
}

func (s *ChatSession) buildMessageViews(messages []*entity.Message) []MessageView {
	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, MessageView{
			ID:         m.ID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Text:       m.CleanBody(),
			Attachment: m.Attachment,
			SentAt:     m.SentAt,
			IsUser:     m.SenderID == s.actorID,
			Read:       m.Read,
		})
	}
	return views
}

func (s *ChatSession) push(event sessionEvent) {
	if s.ws == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal session event: %v", err)
		return
	}
	s.ws.SendToActor(s.actorID, payload)
}

func (s *ChatSession) ActorID() string { return s.actorID }

func (s *ChatSession) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

func (s *ChatSession) Conversations() []ConversationView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ConversationView(nil), s.conversations...)
}

func (s *ChatSession) Messages() []MessageView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]MessageView(nil), s.messages...)
}

// ListErr reports the conversation subscription's error state, nil while
// healthy.
func (s *ChatSession) ListErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listErr
}

// StreamErr reports the message subscription's error state, nil while
// healthy.
func (s *ChatSession) StreamErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamErr
}

// Close cancels both subscriptions and discards the cached state. The caches
// are scoped to the signed-in actor and must not outlive the session.
func (s *ChatSession) Close() {
	if s.cancel != nil {
		s.cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.msgWatch != nil {
		s.msgWatch.Close()
		s.msgWatch = nil
	}
	if s.convWatch != nil {
		s.convWatch.Close()
		s.convWatch = nil
	}
	s.conversations = nil
	s.messages = nil
	s.selected = ""
	s.pendingID = ""
}
