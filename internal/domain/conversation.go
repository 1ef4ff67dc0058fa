package domain

import (
	"strings"
	"time"

	apperrors "gigchat/pkg/errors"
)

// Conversation is the durable two-party messaging thread. Its id is derived
// from the participant pair, so the same two users always resolve to the
// same conversation without a lookup table.
type Conversation struct {
	ID                 string         `json:"id"`
	Participants       [2]string      `json:"participants"`
	LastMessagePreview string         `json:"last_message_preview"`
	LastUpdatedAt      time.Time      `json:"last_updated_at"`
	UnreadCount        map[string]int `json:"unread_count"`
	HiddenFor          []string       `json:"hidden_for,omitempty"`
	PurgedAt           *time.Time     `json:"purged_at,omitempty"`
}

// PairID computes the deterministic conversation id for two distinct users:
// the ids sorted lexicographically and joined with "_".
func PairID(a, b string) (string, error) {
	if a == "" || b == "" {
		return "", apperrors.ErrValidation
	}
	if a == b {
		return "", apperrors.ErrSelfConversation
	}
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "_" + b, nil
}

// NewConversation builds an empty conversation between two distinct users.
func NewConversation(a, b string, now time.Time) (Conversation, error) {
	id, err := PairID(a, b)
	if err != nil {
		return Conversation{}, err
	}
	first, second := a, b
	if strings.Compare(first, second) > 0 {
		first, second = second, first
	}
	return Conversation{
		ID:            id,
		Participants:  [2]string{first, second},
		LastUpdatedAt: now,
		UnreadCount:   map[string]int{a: 0, b: 0},
	}, nil
}

// HasParticipant reports whether userID is one of the two participants.
func (c Conversation) HasParticipant(userID string) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// Other returns the participant that is not userID.
func (c Conversation) Other(userID string) string {
	if c.Participants[0] == userID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// IsHiddenFor reports whether userID removed this conversation from their
// own view.
func (c Conversation) IsHiddenFor(userID string) bool {
	for _, id := range c.HiddenFor {
		if id == userID {
			return true
		}
	}
	return false
}

// UnreadFor returns the unread counter for userID.
func (c Conversation) UnreadFor(userID string) int {
	if c.UnreadCount == nil {
		return 0
	}
	return c.UnreadCount[userID]
}
