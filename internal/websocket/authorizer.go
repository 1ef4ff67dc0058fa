package websocket

import (
	"context"
	"errors"
	"strings"

	"gigchat/internal/domain"
	"gigchat/internal/repository"
	apperrors "gigchat/pkg/errors"
)

const (
	directoryPrefix = "gigchat:directory:"
	messagesPrefix  = "gigchat:messages:"
	presencePrefix  = "gigchat:presence:"
)

// ChannelAuthorizer decides which channels a connected user may subscribe
// to: their own directory, conversations they participate in, and the
// presence of users they share a conversation with.
type ChannelAuthorizer struct {
	conversations repository.ConversationRepository
}

func NewChannelAuthorizer(conversations repository.ConversationRepository) *ChannelAuthorizer {
	return &ChannelAuthorizer{conversations: conversations}
}

func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID, channel string) (bool, error) {
	if strings.HasPrefix(channel, directoryPrefix) {
		return strings.TrimPrefix(channel, directoryPrefix) == userID, nil
	}

	if strings.HasPrefix(channel, messagesPrefix) {
		conversationID := strings.TrimPrefix(channel, messagesPrefix)
		row, err := a.conversations.GetByID(ctx, conversationID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		return row.ToDomain().HasParticipant(userID), nil
	}

	if strings.HasPrefix(channel, presencePrefix) {
		targetID := strings.TrimPrefix(channel, presencePrefix)
		if targetID == userID {
			return true, nil
		}
		return a.sharesConversation(ctx, userID, targetID)
	}

	return false, nil
}

func (a *ChannelAuthorizer) sharesConversation(ctx context.Context, userID, targetID string) (bool, error) {
	pairID, err := domain.PairID(userID, targetID)
	if err != nil {
		return false, nil
	}
	if _, err := a.conversations.GetByID(ctx, pairID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
