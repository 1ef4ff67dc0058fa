package httpdto

// StartConversationRequest opens (or re-opens) the pair conversation with
// another user.
type StartConversationRequest struct {
	OtherUserID string `json:"other_user_id" binding:"required"`
}

// StartConversationResponse returns the deterministic pair id.
type StartConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

// SendMessageRequest posts a message addressed by participant, not by
// conversation: the conversation is created implicitly on first send.
type SendMessageRequest struct {
	OtherUserID string `json:"other_user_id" binding:"required"`
	Text        string `json:"text" binding:"required"`
}
