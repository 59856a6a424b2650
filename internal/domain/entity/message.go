package entity

import "time"

// Message is one append-only unit of conversation content. SentAt is assigned
// by the store on write.
type Message struct {
	ID             string      `json:"id" firestore:"id"`
	ConversationID string      `json:"conversation_id" firestore:"conversationId"`
	SenderID       string      `json:"sender_id" firestore:"senderId"`
	ReceiverID     string      `json:"receiver_id" firestore:"receiverId"`
	Body           string      `json:"body" firestore:"body"`
	Attachment     *Attachment `json:"attachment,omitempty" firestore:"attachment,omitempty"`
	SentAt         time.Time   `json:"sent_at" firestore:"sentAt,serverTimestamp"`
	Read           bool        `json:"read" firestore:"read"`
}

// Normalize maps the upstream shapes of a message into one internal form:
// documents written before the structured attachment field existed carry the
// attachment only as a tag inside the body. Called once at the ingestion
// boundary; the rest of the system sees only the normalized message.
func (m *Message) Normalize() {
	if m.Attachment != nil {
		return
	}
	if _, att := DecodeBody(m.Body); att != nil {
		m.Attachment = att
	}
}

// CleanBody returns the caption text with any embedded attachment tag
// stripped out.
func (m *Message) CleanBody() string {
	clean, _ := DecodeBody(m.Body)
	return clean
}
