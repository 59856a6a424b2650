package repository

import (
	"context"
	"log"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"talentline/internal/domain/entity"
	"talentline/internal/domain/repository"
	"talentline/pkg/errors"
)

type firestoreConversationRepository struct {
	client *firestore.Client
}

func NewFirestoreConversationRepository(client *firestore.Client) repository.ConversationRepository {
	return &firestoreConversationRepository{
		client: client,
	}
}

func (r *firestoreConversationRepository) conversations() *firestore.CollectionRef {
	return r.client.Collection("conversations")
}

func (r *firestoreConversationRepository) messages(conversationID string) *firestore.CollectionRef {
	return r.conversations().Doc(conversationID).Collection("messages")
}

func (r *firestoreConversationRepository) Create(ctx context.Context, conversation *entity.Conversation) error {
	now := time.Now()
	conversation.CreatedAt = now
	if conversation.LastMessageAt.IsZero() {
		conversation.LastMessageAt = now
	}
	if conversation.UnreadCount == nil {
		conversation.UnreadCount = make(map[string]int)
	}

	_, err := r.conversations().Doc(conversation.ID).Create(ctx, conversation)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.Conflict("Conversation already exists")
		}
		return errors.Internal("Failed to create conversation", err)
	}

	return nil
}

func (r *firestoreConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	doc, err := r.conversations().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Conversation", nil)
		}
		return nil, errors.Internal("Failed to get conversation", err)
	}

	var conversation entity.Conversation
	if err := doc.DataTo(&conversation); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}
	conversation.ID = doc.Ref.ID

	return &conversation, nil
}

func (r *firestoreConversationRepository) ListByParticipant(ctx context.Context, actorID string) ([]*entity.Conversation, error) {
	// No OrderBy here: combining array-contains with a server-side sort
	// would need a composite index. Ordering is done client-side instead.
	query := r.conversations().Where("participants", "array-contains", actorID)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while fetching conversations for actor %s: %v", actorID, err)
		return nil, errors.Internal("Failed to fetch conversations", err)
	}

	conversations := parseConversationDocs(docs)
	sortConversations(conversations)

	return conversations, nil
}

func (r *firestoreConversationRepository) AppendMessage(ctx context.Context, message *entity.Message, summary string) error {
	convRef := r.conversations().Doc(message.ConversationID)
	msgRef := r.messages(message.ConversationID).Doc(message.ID)

	// The message write and the summary update stand or fall together so
	// the conversation list can never show a summary for a message that
	// was not persisted (or vice versa).
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(convRef); err != nil {
			return err
		}

		if err := tx.Create(msgRef, message); err != nil {
			return err
		}

		return tx.Update(convRef, []firestore.Update{
			{Path: "lastMessage", Value: summary},
			{Path: "lastMessageAt", Value: firestore.ServerTimestamp},
			{FieldPath: firestore.FieldPath{"unreadCount", message.ReceiverID}, Value: firestore.Increment(1)},
		})
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Conversation", err)
		}
		return errors.Internal("Failed to append message", err)
	}

	return nil
}

func (r *firestoreConversationRepository) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	query := r.messages(conversationID).OrderBy("sentAt", firestore.Asc)

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while fetching messages for conversation %s: %v", conversationID, err)
		return nil, 0, errors.Internal("Failed to fetch messages", err)
	}

	total := int64(len(allDocs))

	// Pagination in-memory, same trade-off as the conversation list: no
	// extra count query, no index requirements.
	start := offset
	if start > len(allDocs) {
		start = len(allDocs)
	}
	end := len(allDocs)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	var messages []*entity.Message
	for _, doc := range allDocs[start:end] {
		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			log.Printf("Error parsing message data for conversation %s: %v", conversationID, err)
			continue
		}
		message.ID = doc.Ref.ID
		message.Normalize()
		messages = append(messages, &message)
	}

	return messages, total, nil
}

func (r *firestoreConversationRepository) MarkRead(ctx context.Context, conversationID, actorID string) error {
	_, err := r.conversations().Doc(conversationID).Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{"unreadCount", actorID}, Value: 0},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Conversation", err)
		}
		return errors.Internal("Failed to mark conversation as read", err)
	}

	return nil
}

func (r *firestoreConversationRepository) WatchByParticipant(ctx context.Context, actorID string) (*repository.ConversationWatch, error) {
	ctx, cancel := context.WithCancel(ctx)
	snapshots := r.conversations().Where("participants", "array-contains", actorID).Snapshots(ctx)

	updates := make(chan repository.ConversationUpdate, 1)

	go func() {
		defer close(updates)
		defer snapshots.Stop()

		for {
			snap, err := snapshots.Next()
			if err != nil {
				if status.Code(err) == codes.Canceled || ctx.Err() != nil {
					return
				}
				log.Printf("Conversation listener for actor %s failed: %v", actorID, err)
				deliverConversationUpdate(ctx, updates, repository.ConversationUpdate{
					Err: errors.Internal("Conversation subscription failed", err),
				})
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				log.Printf("Conversation snapshot read for actor %s failed: %v", actorID, err)
				deliverConversationUpdate(ctx, updates, repository.ConversationUpdate{
					Err: errors.Internal("Conversation subscription failed", err),
				})
				return
			}

			conversations := parseConversationDocs(docs)
			sortConversations(conversations)

			if !deliverConversationUpdate(ctx, updates, repository.ConversationUpdate{Conversations: conversations}) {
				return
			}
		}
	}()

	return repository.NewConversationWatch(updates, cancel), nil
}

func (r *firestoreConversationRepository) WatchMessages(ctx context.Context, conversationID string) (*repository.MessageWatch, error) {
	ctx, cancel := context.WithCancel(ctx)
	snapshots := r.messages(conversationID).OrderBy("sentAt", firestore.Asc).Snapshots(ctx)

	updates := make(chan repository.MessageUpdate, 1)

	go func() {
		defer close(updates)
		defer snapshots.Stop()

		for {
			snap, err := snapshots.Next()
			if err != nil {
				if status.Code(err) == codes.Canceled || ctx.Err() != nil {
					return
				}
				log.Printf("Message listener for conversation %s failed: %v", conversationID, err)
				deliverMessageUpdate(ctx, updates, repository.MessageUpdate{
					Err: errors.Internal("Message subscription failed", err),
				})
				return
			}

			var messages []*entity.Message
			iter := snap.Documents
			for {
				doc, err := iter.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					log.Printf("Message snapshot read for conversation %s failed: %v", conversationID, err)
					deliverMessageUpdate(ctx, updates, repository.MessageUpdate{
						Err: errors.Internal("Message subscription failed", err),
					})
					return
				}

				var message entity.Message
				if err := doc.DataTo(&message); err != nil {
					log.Printf("Error parsing message data for conversation %s: %v", conversationID, err)
					continue
				}
				message.ID = doc.Ref.ID
				message.Normalize()
				messages = append(messages, &message)
			}

			if !deliverMessageUpdate(ctx, updates, repository.MessageUpdate{Messages: messages}) {
				return
			}
		}
	}()

	return repository.NewMessageWatch(updates, cancel), nil
}

func deliverConversationUpdate(ctx context.Context, ch chan<- repository.ConversationUpdate, update repository.ConversationUpdate) bool {
	select {
	case ch <- update:
		return true
	case <-ctx.Done():
		return false
	}
}

func deliverMessageUpdate(ctx context.Context, ch chan<- repository.MessageUpdate, update repository.MessageUpdate) bool {
	select {
	case ch <- update:
		return true
	case <-ctx.Done():
		return false
	}
}

func parseConversationDocs(docs []*firestore.DocumentSnapshot) []*entity.Conversation {
	var conversations []*entity.Conversation
	for _, doc := range docs {
		var conversation entity.Conversation
		if err := doc.DataTo(&conversation); err != nil {
			log.Printf("Error parsing conversation data for doc %s: %v", doc.Ref.ID, err)
			continue // Skip bad data instead of failing
		}
		conversation.ID = doc.Ref.ID
		conversations = append(conversations, &conversation)
	}
	return conversations
}

// sortConversations orders by lastMessageAt descending, ties broken by id so
// the order is deterministic.
func sortConversations(conversations []*entity.Conversation) {
	sort.Slice(conversations, func(i, j int) bool {
		if !conversations[i].LastMessageAt.Equal(conversations[j].LastMessageAt) {
			return conversations[i].LastMessageAt.After(conversations[j].LastMessageAt)
		}
		return conversations[i].ID < conversations[j].ID
	})
}
