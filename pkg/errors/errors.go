package apperrors

import "errors"

// Sentinel errors shared across the messaging core. Handlers and controllers
// match these with errors.Is.
var (
	ErrAuthRequired       = errors.New("authentication required")
	ErrNotParticipant     = errors.New("not a conversation participant")
	ErrValidation         = errors.New("invalid input")
	ErrSelfConversation   = errors.New("cannot start a conversation with yourself")
	ErrNotSender          = errors.New("only the sender may unsend a message")
	ErrNotFound           = errors.New("not found")
	ErrSendInFlight       = errors.New("previous send still in flight")
	ErrAlreadyExists      = errors.New("already exists")
	ErrBackendUnavailable = errors.New("backend unavailable")
)
