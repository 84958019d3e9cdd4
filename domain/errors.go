package domain

import "errors"

var (
	ErrRoomFull          = errors.New("room is full")
	ErrDuplicatePlayer   = errors.New("player already in room")
	ErrColorTaken        = errors.New("player color already taken")
	ErrCannotRemoveHost  = errors.New("cannot remove host")
	ErrRoomNotReady      = errors.New("room is not ready")
	ErrGameNotInProgress = errors.New("game is not in progress")
	ErrInvalidLanding    = errors.New("invalid landing")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")

	// ErrBackendNotImplemented is returned by reserved storage backends.
	ErrBackendNotImplemented = errors.New("storage backend not implemented")
	ErrNotConnected          = errors.New("storage backend not connected")
)
