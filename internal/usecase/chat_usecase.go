package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"talentline/internal/domain/entity"
	"talentline/internal/domain/repository"
	"talentline/internal/domain/service"
	"talentline/internal/infrastructure/ratelimit"
	"talentline/pkg/errors"
	"talentline/pkg/logger"
)

type ChatUseCase struct {
	convRepo    repository.ConversationRepository
	actorRepo   repository.ActorRepository
	uploader    service.BlobUploadService
	sessions    *SessionManager
	rateLimiter *ratelimit.RateLimiter

	uploadTimeout  time.Duration
	uploadRetries  int
	maxUploadBytes int64
}

func NewChatUseCase(
	convRepo repository.ConversationRepository,
	actorRepo repository.ActorRepository,
	uploader service.BlobUploadService,
	sessions *SessionManager,
	uploadTimeout time.Duration,
	uploadRetries int,
	maxUploadBytes int64,
) *ChatUseCase {
	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	// Always make at least one attempt.
	if uploadRetries < 1 {
		uploadRetries = 1
	}

	return &ChatUseCase{
		convRepo:       convRepo,
		actorRepo:      actorRepo,
		uploader:       uploader,
		sessions:       sessions,
		rateLimiter:    rateLimiter,
		uploadTimeout:  uploadTimeout,
		uploadRetries:  uploadRetries,
		maxUploadBytes: maxUploadBytes,
	}
}

// AttachmentUpload is a file picked in the composer, not yet uploaded.
type AttachmentUpload struct {
	Content  io.Reader
	Name     string
	MIMEType string
	Size     int64
	IsImage  bool
}

type SendMessageInput struct {
	ConversationID string
	Text           string
	Attachment     *AttachmentUpload
}

// StartConversation finds or creates the conversation between actorID and
// peerID. The id is derived from the pair, so calling this twice never
// produces a second conversation. The caller's session, if any, is marked
// pending on the id: the conversation is auto-selected once the actor's own
// write comes back through the list subscription rather than assuming
// read-after-write visibility.
func (uc *ChatUseCase) StartConversation(ctx context.Context, actorID, peerID string) (*entity.Conversation, error) {
	if actorID == "" {
		return nil, errors.Unauthorized("Authentication required", nil)
	}
	if actorID == peerID {
		return nil, errors.BadRequest("You cannot start a conversation with yourself", nil)
	}

	conversationID, err := entity.ConversationIDFor(actorID, peerID)
	if err != nil {
		return nil, err
	}

	existing, err := uc.convRepo.GetByID(ctx, conversationID)
	if err == nil {
		uc.markPending(actorID, conversationID)
		return existing, nil
	}
	if !errors.Is(err, "NOT_FOUND") {
		return nil, err
	}

	allowed, waitTime := uc.rateLimiter.Allow(actorID, "start_conversation")
	if !allowed {
		logger.Warn("StartConversation rate limited: actor %s must wait %v", actorID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before starting another conversation", waitTime)
	}

	actor, err := uc.actorRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, errors.NotFound("Actor", err)
	}
	peer, err := uc.actorRepo.GetByID(ctx, peerID)
	if err != nil {
		return nil, errors.NotFound("Recipient", err)
	}

	conversation := &entity.Conversation{
		ID:           conversationID,
		Participants: entity.SortedPair(actorID, peerID),
		ParticipantNames: map[string]string{
			actor.ID: actor.DisplayName,
			peer.ID:  peer.DisplayName,
		},
		ParticipantAvatars: map[string]string{
			actor.ID: actor.AvatarURL,
			peer.ID:  peer.AvatarURL,
		},
		UnreadCount: make(map[string]int),
	}

	if err := uc.convRepo.Create(ctx, conversation); err != nil {
		if errors.Is(err, "CONFLICT") {
			// Lost the race against the peer; the document is there.
			existing, getErr := uc.convRepo.GetByID(ctx, conversationID)
			if getErr != nil {
				return nil, getErr
			}
			uc.markPending(actorID, conversationID)
			return existing, nil
		}
		return nil, err
	}

	uc.markPending(actorID, conversationID)
	return conversation, nil
}

func (uc *ChatUseCase) markPending(actorID, conversationID string) {
	if uc.sessions == nil {
		return
	}
	if session := uc.sessions.Get(actorID); session != nil {
		session.SetPending(conversationID)
	}
}

// SendMessage commits an outgoing message. The attachment, if any, is
// uploaded first; an upload failure aborts the whole send so no partial
// message is ever persisted. The message and the conversation summary are
// then written as one unit.
func (uc *ChatUseCase) SendMessage(ctx context.Context, actorID string, input SendMessageInput) (*entity.Message, error) {
	if actorID == "" {
		return nil, errors.Unauthorized("Authentication required", nil)
	}
	if input.ConversationID == "" {
		return nil, errors.BadRequest("No conversation selected", nil)
	}

	text := strings.TrimSpace(input.Text)
	if text == "" && input.Attachment == nil {
		return nil, errors.BadRequest("Message is empty", nil)
	}

	allowed, waitTime := uc.rateLimiter.Allow(actorID, "send_message")
	if !allowed {
		logger.Warn("SendMessage rate limited: actor %s must wait %v", actorID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message", waitTime)
	}

	conversation, err := uc.convRepo.GetByID(ctx, input.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(actorID) {
		return nil, errors.Forbidden("Actor is not a participant in this conversation", nil)
	}

	receiverID, err := conversation.OtherParticipant(actorID)
	if err != nil {
		return nil, err
	}

	var attachment *entity.Attachment
	if input.Attachment != nil {
		attachment, err = uc.uploadAttachment(ctx, conversation.ID, input.Attachment)
		if err != nil {
			return nil, err
		}
	}

	summary := text
	if attachment != nil {
		summary = "\U0001F4CE " + attachment.Name
	}

	message := &entity.Message{
		ID:             uuid.New().String(),
		ConversationID: conversation.ID,
		SenderID:       actorID,
		ReceiverID:     receiverID,
		Body:           entity.EncodeBody(text, attachment),
		Attachment:     attachment,
		Read:           false,
	}

	if err := uc.convRepo.AppendMessage(ctx, message, summary); err != nil {
		logger.Error("SendMessage: append failed for conversation %s: %v", conversation.ID, err)
		if attachment != nil {
			// Best effort; the orphaned blob is harmless if this fails too.
			if delErr := uc.uploader.Delete(ctx, attachment.URL); delErr != nil {
				logger.Warn("Failed to delete orphaned attachment %s: %v", attachment.URL, delErr)
			}
		}
		return nil, err
	}

	return message, nil
}

// uploadAttachment pushes the file to blob storage with bounded retries and
// a per-attempt timeout, and returns the durable descriptor. The path is
// namespaced by conversation and timestamp-prefixed so names cannot collide
// across or within conversations.
func (uc *ChatUseCase) uploadAttachment(ctx context.Context, conversationID string, upload *AttachmentUpload) (*entity.Attachment, error) {
	data, err := io.ReadAll(io.LimitReader(upload.Content, uc.maxUploadBytes+1))
	if err != nil {
		return nil, errors.Internal("Failed to read attachment", err)
	}
	if int64(len(data)) > uc.maxUploadBytes {
		return nil, errors.BadRequest(fmt.Sprintf("Attachment exceeds the %d byte limit", uc.maxUploadBytes), nil)
	}

	objectPath := fmt.Sprintf("chat/%s/%d-%s", conversationID, time.Now().UnixMilli(), sanitizeFileName(upload.Name))

	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt < uc.uploadRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Internal("Attachment upload canceled", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		attemptCtx, cancel := context.WithTimeout(ctx, uc.uploadTimeout)
		url, err := uc.uploader.Upload(attemptCtx, bytes.NewReader(data), upload.MIMEType, objectPath)
		cancel()
		if err == nil {
			return &entity.Attachment{
				Name:     upload.Name,
				MIMEType: upload.MIMEType,
				Size:     int64(len(data)),
				URL:      url,
				IsImage:  upload.IsImage,
			}, nil
		}

		lastErr = err
		logger.Warn("Attachment upload attempt %d for conversation %s failed: %v", attempt+1, conversationID, err)
		if ctx.Err() != nil {
			break
		}
	}

	return nil, errors.Internal("Failed to upload attachment", lastErr)
}

func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		name = "attachment"
	}
	return name
}

// ListConversations is the one-shot REST counterpart of the list
// subscription, using the same ordering.
func (uc *ChatUseCase) ListConversations(ctx context.Context, actorID string) ([]*entity.Conversation, error) {
	if actorID == "" {
		return nil, errors.Unauthorized("Authentication required", nil)
	}
	return uc.convRepo.ListByParticipant(ctx, actorID)
}

func (uc *ChatUseCase) ListMessages(ctx context.Context, actorID, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	conversation, err := uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if !conversation.HasParticipant(actorID) {
		return nil, 0, errors.Forbidden("Actor is not a participant in this conversation", nil)
	}

	return uc.convRepo.ListMessages(ctx, conversationID, limit, offset)
}

func (uc *ChatUseCase) MarkRead(ctx context.Context, actorID, conversationID string) error {
	conversation, err := uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conversation.HasParticipant(actorID) {
		return errors.Forbidden("Actor is not a participant in this conversation", nil)
	}

	return uc.convRepo.MarkRead(ctx, conversationID, actorID)
}
