package usecase

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"talentline/internal/domain/entity"
	"talentline/internal/domain/repository"
	"talentline/pkg/errors"
)

type memoryConversationRepo struct {
	mu            sync.Mutex
	conversations map[string]*entity.Conversation
	messages      map[string][]*entity.Message
	createCalls   int
	appendErr     error
}

func newMemoryConversationRepo() *memoryConversationRepo {
	return &memoryConversationRepo{
		conversations: make(map[string]*entity.Conversation),
		messages:      make(map[string][]*entity.Message),
	}
}

func (r *memoryConversationRepo) Create(ctx context.Context, conversation *entity.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if _, ok := r.conversations[conversation.ID]; ok {
		return errors.Conflict("Conversation already exists")
	}
	r.conversations[conversation.ID] = conversation
	return nil
}

func (r *memoryConversationRepo) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conv, ok := r.conversations[id]; ok {
		return conv, nil
	}
	return nil, errors.NotFound("Conversation", nil)
}

func (r *memoryConversationRepo) ListByParticipant(ctx context.Context, actorID string) ([]*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Conversation
	for _, conv := range r.conversations {
		if conv.HasParticipant(actorID) {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (r *memoryConversationRepo) AppendMessage(ctx context.Context, message *entity.Message, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	conv, ok := r.conversations[message.ConversationID]
	if !ok {
		return errors.NotFound("Conversation", nil)
	}
	r.messages[message.ConversationID] = append(r.messages[message.ConversationID], message)
	conv.LastMessage = summary
	conv.LastMessageAt = time.Now()
	if conv.UnreadCount == nil {
		conv.UnreadCount = make(map[string]int)
	}
	conv.UnreadCount[message.ReceiverID]++
	return nil
}

func (r *memoryConversationRepo) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[conversationID]
	return msgs, int64(len(msgs)), nil
}

func (r *memoryConversationRepo) MarkRead(ctx context.Context, conversationID, actorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[conversationID]
	if !ok {
		return errors.NotFound("Conversation", nil)
	}
	if conv.UnreadCount != nil {
		conv.UnreadCount[actorID] = 0
	}
	return nil
}

func (r *memoryConversationRepo) WatchByParticipant(ctx context.Context, actorID string) (*repository.ConversationWatch, error) {
	ch := make(chan repository.ConversationUpdate)
	return repository.NewConversationWatch(ch, func() { close(ch) }), nil
}

func (r *memoryConversationRepo) WatchMessages(ctx context.Context, conversationID string) (*repository.MessageWatch, error) {
	ch := make(chan repository.MessageUpdate)
	return repository.NewMessageWatch(ch, func() { close(ch) }), nil
}

func (r *memoryConversationRepo) messageCount(conversationID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages[conversationID])
}

type memoryActorRepo struct {
	actors map[string]*entity.Actor
}

func (r *memoryActorRepo) GetByID(ctx context.Context, id string) (*entity.Actor, error) {
	if actor, ok := r.actors[id]; ok {
		return actor, nil
	}
	return nil, errors.NotFound("Actor", nil)
}

func (r *memoryActorRepo) Upsert(ctx context.Context, actor *entity.Actor) error {
	r.actors[actor.ID] = actor
	return nil
}

type stubUploader struct {
	mu       sync.Mutex
	failures int
	attempts int
	deleted  []string
}

func (u *stubUploader) Upload(ctx context.Context, content io.Reader, contentType, objectPath string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.attempts++
	if u.attempts <= u.failures {
		return "", errors.Internal("upload transport error", nil)
	}
	return "https://storage.googleapis.com/bucket/" + objectPath, nil
}

func (u *stubUploader) Delete(ctx context.Context, fileURL string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deleted = append(u.deleted, fileURL)
	return nil
}

func (u *stubUploader) Close() error { return nil }

func newTestChatUseCase(repo *memoryConversationRepo, actors *memoryActorRepo, uploader *stubUploader) *ChatUseCase {
	return NewChatUseCase(repo, actors, uploader, nil, time.Second, 2, 1024)
}

func testActors() *memoryActorRepo {
	return &memoryActorRepo{actors: map[string]*entity.Actor{
		"app_9": {ID: "app_9", DisplayName: "Ana Applicant", Role: entity.RoleApplicant},
		"rec_1": {ID: "rec_1", DisplayName: "Rita Recruiter", AvatarURL: "https://cdn/rita.png", Role: entity.RoleRecruiter},
	}}
}

func TestStartConversationIsIdempotent(t *testing.T) {
	repo := newMemoryConversationRepo()
	uc := newTestChatUseCase(repo, testActors(), &stubUploader{})
	ctx := context.Background()

	first, err := uc.StartConversation(ctx, "rec_1", "app_9")
	assert.NoError(t, err)
	assert.Equal(t, "app_9_rec_1", first.ID)
	assert.Equal(t, []string{"app_9", "rec_1"}, first.Participants)
	assert.Equal(t, "Ana Applicant", first.ParticipantNames["app_9"])

	second, err := uc.StartConversation(ctx, "app_9", "rec_1")
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.createCalls)
}

func TestStartConversationRejectsSelf(t *testing.T) {
	uc := newTestChatUseCase(newMemoryConversationRepo(), testActors(), &stubUploader{})

	_, err := uc.StartConversation(context.Background(), "rec_1", "rec_1")
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestStartConversationUnknownPeer(t *testing.T) {
	uc := newTestChatUseCase(newMemoryConversationRepo(), testActors(), &stubUploader{})

	_, err := uc.StartConversation(context.Background(), "rec_1", "ghost")
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}

func TestSendMessageText(t *testing.T) {
	repo := newMemoryConversationRepo()
	uc := newTestChatUseCase(repo, testActors(), &stubUploader{})
	ctx := context.Background()

	conv, err := uc.StartConversation(ctx, "rec_1", "app_9")
	assert.NoError(t, err)

	msg, err := uc.SendMessage(ctx, "rec_1", SendMessageInput{
		ConversationID: conv.ID,
		Text:           "Hi, saw your application",
	})
	assert.NoError(t, err)
	assert.Equal(t, "rec_1", msg.SenderID)
	assert.Equal(t, "app_9", msg.ReceiverID)
	assert.Equal(t, "Hi, saw your application", msg.Body)
	assert.Nil(t, msg.Attachment)
	assert.False(t, msg.Read)

	assert.Equal(t, "Hi, saw your application", conv.LastMessage)
	assert.Equal(t, 1, conv.UnreadCount["app_9"])
	assert.Equal(t, 0, conv.UnreadCount["rec_1"])
}

func TestSendMessageWithAttachment(t *testing.T) {
	repo := newMemoryConversationRepo()
	uploader := &stubUploader{}
	uc := newTestChatUseCase(repo, testActors(), uploader)
	ctx := context.Background()

	conv, err := uc.StartConversation(ctx, "rec_1", "app_9")
	assert.NoError(t, err)

	msg, err := uc.SendMessage(ctx, "app_9", SendMessageInput{
		ConversationID: conv.ID,
		Text:           "My CV",
		Attachment: &AttachmentUpload{
			Content:  strings.NewReader("pdf bytes"),
			Name:     "cv.pdf",
			MIMEType: "application/pdf",
		},
	})
	assert.NoError(t, err)
	assert.NotNil(t, msg.Attachment)
	assert.Equal(t, "cv.pdf", msg.Attachment.Name)
	assert.Equal(t, int64(len("pdf bytes")), msg.Attachment.Size)
	assert.Contains(t, msg.Attachment.URL, "chat/"+conv.ID+"/")

	// The body carries the encoded tag and decodes back to the caption.
	caption, decoded := entity.DecodeBody(msg.Body)
	assert.Equal(t, "My CV", caption)
	assert.Equal(t, msg.Attachment, decoded)

	assert.Equal(t, "\U0001F4CE cv.pdf", conv.LastMessage)
}

func TestSendMessageEmptyRejected(t *testing.T) {
	repo := newMemoryConversationRepo()
	uc := newTestChatUseCase(repo, testActors(), &stubUploader{})
	ctx := context.Background()

	conv, err := uc.StartConversation(ctx, "rec_1", "app_9")
	assert.NoError(t, err)

	_, err = uc.SendMessage(ctx, "rec_1", SendMessageInput{ConversationID: conv.ID, Text: "   "})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
	assert.Equal(t, 0, repo.messageCount(conv.ID))
}

func TestSendMessageRequiresAuth(t *testing.T) {
	uc := newTestChatUseCase(newMemoryConversationRepo(), testActors(), &stubUploader{})

	_, err := uc.SendMessage(context.Background(), "", SendMessageInput{ConversationID: "x", Text: "hi"})
	assert.True(t, errors.Is(err, "UNAUTHORIZED"))
}

func TestSendMessageRequiresSelection(t *testing.T) {
	uc := newTestChatUseCase(newMemoryConversationRepo(), testActors(), &stubUploader{})

	_, err := uc.SendMessage(context.Background(), "rec_1", SendMessageInput{Text: "hi"})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestSendMessageNonParticipantForbidden(t *testing.T) {
	repo := newMemoryConversationRepo()
	actors := testActors()
	actors.actors["mallory"] = &entity.Actor{ID: "mallory", DisplayName: "Mallory"}
	uc := newTestChatUseCase(repo, actors, &stubUploader{})
	ctx := context.Background()

	conv, err := uc.StartConversation(ctx, "rec_1", "app_9")
	assert.NoError(t, err)

	_, err = uc.SendMessage(ctx, "mallory", SendMessageInput{ConversationID: conv.ID, Text: "hi"})
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestSendMessageUploadFailureAborts(t *testing.T) {
	repo := newMemoryConversationRepo()
	uploader := &stubUploader{failures: 100}
	uc := newTestChatUseCase(repo, testActors(), uploader)
	ctx := context.Background()

	conv, err := uc.StartConversation(ctx, "rec_1", "app_9")
	assert.NoError(t, err)

	_, err = uc.SendMessage(ctx, "rec_1", SendMessageInput{
		ConversationID: conv.ID,
		Text:           "with file",
		Attachment: &AttachmentUpload{
			Content:  strings.NewReader("data"),
			Name:     "broken.bin",
			MIMEType: "application/octet-stream",
		},
	})
	assert.Error(t, err)

	// Nothing persisted: no message, and the summary is untouched.
	assert.Equal(t, 0, repo.messageCount(conv.ID))
	assert.Equal(t, "", conv.LastMessage)
}

func TestSendMessageUploadRetriesThenSucceeds(t *testing.T) {
	repo := newMemoryConversationRepo()
	uploader := &stubUploader{failures: 1}
	uc := newTestChatUseCase(repo, testActors(), uploader)
	ctx := context.Background()

	conv, err := uc.StartConversation(ctx, "rec_1", "app_9")
	assert.NoError(t, err)

	msg, err := uc.SendMessage(ctx, "rec_1", SendMessageInput{
		ConversationID: conv.ID,
		Attachment: &AttachmentUpload{
			Content:  strings.NewReader("img"),
			Name:     "shot.png",
			MIMEType: "image/png",
			IsImage:  true,
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, uploader.attempts)
	assert.True(t, msg.Attachment.IsImage)
}

func TestSendMessageUploadsWithZeroConfiguredRetries(t *testing.T) {
	repo := newMemoryConversationRepo()
	uploader := &stubUploader{}
	uc := NewChatUseCase(repo, testActors(), uploader, nil, time.Second, 0, 1024)
	ctx := context.Background()

	conv, err := uc.StartConversation(ctx, "rec_1", "app_9")
	assert.NoError(t, err)

	msg, err := uc.SendMessage(ctx, "rec_1", SendMessageInput{
		ConversationID: conv.ID,
		Attachment: &AttachmentUpload{
			Content:  strings.NewReader("data"),
			Name:     "cv.pdf",
			MIMEType: "application/pdf",
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, uploader.attempts)
	assert.NotNil(t, msg.Attachment)
}

func TestSendMessageOversizeAttachmentRejected(t *testing.T) {
	repo := newMemoryConversationRepo()
	uploader := &stubUploader{}
	uc := newTestChatUseCase(repo, testActors(), uploader)
	ctx := context.Background()

	conv, err := uc.StartConversation(ctx, "rec_1", "app_9")
	assert.NoError(t, err)

	_, err = uc.SendMessage(ctx, "rec_1", SendMessageInput{
		ConversationID: conv.ID,
		Attachment: &AttachmentUpload{
			Content:  strings.NewReader(strings.Repeat("x", 2048)),
			Name:     "huge.bin",
			MIMEType: "application/octet-stream",
		},
	})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
	assert.Equal(t, 0, uploader.attempts)
}

func TestSendMessageOrphanBlobDeletedOnAppendFailure(t *testing.T) {
	repo := newMemoryConversationRepo()
	uploader := &stubUploader{}
	uc := newTestChatUseCase(repo, testActors(), uploader)
	ctx := context.Background()

	conv, err := uc.StartConversation(ctx, "rec_1", "app_9")
	assert.NoError(t, err)

	repo.appendErr = errors.Internal("store unavailable", nil)

	_, err = uc.SendMessage(ctx, "rec_1", SendMessageInput{
		ConversationID: conv.ID,
		Attachment: &AttachmentUpload{
			Content:  strings.NewReader("data"),
			Name:     "doomed.pdf",
			MIMEType: "application/pdf",
		},
	})
	assert.Error(t, err)
	assert.Len(t, uploader.deleted, 1)
	assert.Contains(t, uploader.deleted[0], "doomed.pdf")
}

func TestMarkReadClearsCounter(t *testing.T) {
	repo := newMemoryConversationRepo()
	uc := newTestChatUseCase(repo, testActors(), &stubUploader{})
	ctx := context.Background()

	conv, err := uc.StartConversation(ctx, "rec_1", "app_9")
	assert.NoError(t, err)

	_, err = uc.SendMessage(ctx, "rec_1", SendMessageInput{ConversationID: conv.ID, Text: "ping"})
	assert.NoError(t, err)
	assert.Equal(t, 1, conv.UnreadCount["app_9"])

	assert.NoError(t, uc.MarkRead(ctx, "app_9", conv.ID))
	assert.Equal(t, 0, conv.UnreadCount["app_9"])
}

func TestListMessagesNonParticipantForbidden(t *testing.T) {
	repo := newMemoryConversationRepo()
	uc := newTestChatUseCase(repo, testActors(), &stubUploader{})
	ctx := context.Background()

	conv, err := uc.StartConversation(ctx, "rec_1", "app_9")
	assert.NoError(t, err)

	_, _, err = uc.ListMessages(ctx, "mallory", conv.ID, 50, 0)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}
