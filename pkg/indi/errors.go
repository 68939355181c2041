package indi

import "errors"

var (
	ErrUnknownProperty = errors.New("unknown property")
	ErrMissingElement  = errors.New("unknown property element")
	ErrNotConnected    = errors.New("device not connected")
	ErrReadOnly        = errors.New("property is read only")
	ErrInvalidValue    = errors.New("invalid value")
)
