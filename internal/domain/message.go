package domain

import (
	"sort"
	"time"
)

// UnsentPreview replaces a conversation preview when its latest message is
// unsent. Callers must not infer content from a blank text field.
const UnsentPreview = "Message unsent"

// Message is a single entry in a conversation's append-only log. Unsend is a
// soft delete: text is blanked and the deleted flags are set, the row stays.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	ReceiverID     string     `json:"receiver_id"`
	Text           string     `json:"text"`
	CreatedAt      time.Time  `json:"created_at"`
	Read           bool       `json:"read"`
	Deleted        bool       `json:"deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	DeletedBy      string     `json:"deleted_by,omitempty"`
}

// Preview returns the text to show in a conversation listing.
func (m Message) Preview() string {
	if m.Deleted {
		return UnsentPreview
	}
	return m.Text
}

// SortMessages orders messages by creation time, id as tiebreaker. The sort
// is stable so re-renders from a new snapshot never reorder messages whose
// timestamps are unchanged.
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

// FilterPurged drops messages created before the purge cutoff. A nil cutoff
// passes everything through; the underlying log is never touched.
func FilterPurged(msgs []Message, purgedAt *time.Time) []Message {
	if purgedAt == nil {
		return msgs
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.CreatedAt.Before(*purgedAt) {
			continue
		}
		out = append(out, m)
	}
	return out
}
