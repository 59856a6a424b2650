package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"talentline/pkg/errors"
)

func TestConversationIDForIsOrderIndependent(t *testing.T) {
	id1, err := ConversationIDFor("recruiter123", "applicant456")
	assert.NoError(t, err)

	id2, err := ConversationIDFor("applicant456", "recruiter123")
	assert.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, "applicant456_recruiter123", id1)
}

func TestConversationIDForDistinctPairs(t *testing.T) {
	id1, err := ConversationIDFor("alice", "bob")
	assert.NoError(t, err)

	id2, err := ConversationIDFor("alice", "carol")
	assert.NoError(t, err)

	assert.NotEqual(t, id1, id2)
}

func TestConversationIDForSeparatorInParticipantID(t *testing.T) {
	// Ids that themselves contain the separator still produce a stable key.
	id, err := ConversationIDFor("rec_1", "app_9")
	assert.NoError(t, err)
	assert.Equal(t, "app_9_rec_1", id)

	reversed, err := ConversationIDFor("app_9", "rec_1")
	assert.NoError(t, err)
	assert.Equal(t, id, reversed)
}

func TestConversationIDForRejectsEmptyParticipant(t *testing.T) {
	_, err := ConversationIDFor("", "bob")
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	_, err = ConversationIDFor("alice", "")
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestSortedPair(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SortedPair("b", "a"))
	assert.Equal(t, []string{"a", "b"}, SortedPair("a", "b"))
}

func TestOtherParticipantUsesStoredSet(t *testing.T) {
	conv := &Conversation{
		ID:           "app_9_rec_1",
		Participants: []string{"app_9", "rec_1"},
	}

	peer, err := conv.OtherParticipant("rec_1")
	assert.NoError(t, err)
	assert.Equal(t, "app_9", peer)

	peer, err = conv.OtherParticipant("app_9")
	assert.NoError(t, err)
	assert.Equal(t, "rec_1", peer)
}

func TestOtherParticipantMissingCounterpart(t *testing.T) {
	conv := &Conversation{Participants: []string{"solo"}}

	_, err := conv.OtherParticipant("solo")
	assert.Error(t, err)
}

func TestHasParticipant(t *testing.T) {
	conv := &Conversation{Participants: []string{"alice", "bob"}}

	assert.True(t, conv.HasParticipant("alice"))
	assert.False(t, conv.HasParticipant("mallory"))
}
