package types

import "errors"

// Validation errors shared across the handler and API layers.
var (
	ErrInvalidRoomCode  = errors.New("room code must be 4-12 alphanumeric characters")
	ErrInvalidUsername  = errors.New("username must be at most 50 characters")
	ErrEmptyMessage     = errors.New("message must contain text or an image URL")
	ErrMessageTooLong   = errors.New("message exceeds maximum length")
	ErrInvalidImageURL  = errors.New("image URL must be http or https")
)
