package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNetworkOrService  = errors.New("remote generation service failure")
	ErrMalformedResponse = errors.New("malformed model response")
	ErrMissingCredential = errors.New("no API credential configured")
	ErrInvalidState      = errors.New("invalid request state")

	ErrTooFewOptions   = fmt.Errorf("%w: wheel needs at least %d options", ErrInvalidState, MinOptions)
	ErrTooManyOptions  = fmt.Errorf("%w: wheel allows at most %d options", ErrInvalidState, MaxOptions)
	ErrAlreadySpinning = fmt.Errorf("%w: wheel is already spinning", ErrInvalidState)
	ErrOutOfOrder      = errors.New("stream chunk applied out of order")

	ErrWheelNotFound   = errors.New("wheel not found")
	ErrSessionNotFound = errors.New("chat session not found")
	ErrPromptNotFound  = errors.New("prompt template not found")
	ErrPresetNotFound  = errors.New("wheel preset not found")
)
