package services

import "errors"

var (
	ErrForbidden          = errors.New("not allowed")
	ErrNotParticipant     = errors.New("user is not a participant of this call")
	ErrSelfCall           = errors.New("cannot call yourself")
	ErrSelfRequest        = errors.New("cannot send a friend request to yourself")
	ErrNotFriends         = errors.New("users are not friends")
	ErrInvalidMessage     = errors.New("invalid message")
	ErrInvalidDescription = errors.New("invalid session description")
	ErrOfferPending       = errors.New("call has no offer yet")
	ErrCallClosed         = errors.New("call is already over")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrMissingFilename    = errors.New("filename is required")
	ErrPayloadTooLarge    = errors.New("payload too large")
)
