package room

import "errors"

var (
	ErrRoomExists = errors.New("room already exists")
	ErrNotMember  = errors.New("connection is not a member of this room")
	ErrNoQuestion = errors.New("no question available for this level")
)
