package entity

import (
	"sort"
	"time"

	"talentline/pkg/errors"
)

// ParticipantSeparator joins the two sorted participant ids into the
// conversation document key.
const ParticipantSeparator = "_"

// Conversation is a two-party thread between a recruiter and an applicant.
// Display metadata is denormalized per participant so the list view renders
// without extra lookups.
type Conversation struct {
	ID                 string            `json:"id" firestore:"id"`
	Participants       []string          `json:"participants" firestore:"participants"`
	ParticipantNames   map[string]string `json:"participant_names" firestore:"participantNames"`
	ParticipantAvatars map[string]string `json:"participant_avatars" firestore:"participantAvatars"`
	LastMessage        string            `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageAt      time.Time         `json:"last_message_at" firestore:"lastMessageAt"`
	UnreadCount        map[string]int    `json:"unread_count" firestore:"unreadCount"`
	CreatedAt          time.Time         `json:"created_at" firestore:"createdAt"`
}

// ConversationIDFor derives the canonical id for the unordered pair (a, b):
// the two ids sorted lexicographically, joined with "_". The result is the
// same whichever way the pair is passed, so "create if absent" keyed on it is
// idempotent. Auth-provider uids are alphanumeric, so the separator cannot
// occur inside a production id; the surrounding code never splits the id to
// recover a participant (the stored participant set is authoritative).
func ConversationIDFor(a, b string) (string, error) {
	if a == "" || b == "" {
		return "", errors.BadRequest("Both participant ids are required", nil)
	}
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + ParticipantSeparator + pair[1], nil
}

// SortedPair returns the two ids in the order used by ConversationIDFor.
func SortedPair(a, b string) []string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair
}

func (c *Conversation) HasParticipant(actorID string) bool {
	for _, p := range c.Participants {
		if p == actorID {
			return true
		}
	}
	return false
}

// OtherParticipant resolves the receiver for a message sent by actorID. It
// reads the stored participant set rather than splitting the id string.
func (c *Conversation) OtherParticipant(actorID string) (string, error) {
	for _, p := range c.Participants {
		if p != actorID {
			return p, nil
		}
	}
	return "", errors.Internal("Conversation has no other participant", nil)
}
