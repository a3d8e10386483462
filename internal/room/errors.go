package room

import "errors"

var (
	// ErrBadPassword is returned when the supplied room password does not
	// match the stored hash.
	ErrBadPassword = errors.New("wrong room password")

	// ErrForbidden is returned when a non-admin attempts an admin-only
	// action, including implicit room creation.
	ErrForbidden = errors.New("admin privileges required")

	// ErrRoomNotFound is returned for operations on unregistered rooms.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomExists is returned by Create when the name is already taken.
	ErrRoomExists = errors.New("room already exists")
)
