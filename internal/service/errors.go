// internal/service/errors.go
package service

import "errors"

var (
	ErrProjectorNotFound = errors.New("projector not found")
	ErrUnknownOption     = errors.New("unknown option")
	ErrUnknownChoice     = errors.New("unknown option value")
	ErrOptionReadOnly    = errors.New("option is read-only")
	ErrUnknownFunction   = errors.New("unknown function")
	ErrInvalidValue      = errors.New("invalid value")
)
