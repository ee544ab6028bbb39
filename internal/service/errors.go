package service

import "errors"

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidProgress      = errors.New("progress must be within [0,1]")
	ErrEmptyTitle           = errors.New("title must not be empty")
	ErrEmptyName            = errors.New("name must not be empty")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrEmailTaken           = errors.New("registration failed: email already exists")
	ErrForbidden            = errors.New("forbidden")
	ErrNotRoomOwner         = errors.New("only the room owner may do this")
	ErrCannotRemoveOwner    = errors.New("room owner cannot be removed")
	ErrUserNotFound         = errors.New("user not found")
	ErrRoomNotFound         = errors.New("room not found")
	ErrTaskNotFound         = errors.New("task not found")
	ErrSubtaskNotFound      = errors.New("subtask not found")
	ErrCompletionNotFound   = errors.New("completion not found")
	ErrInternalServer       = errors.New("internal server error")
)
