package player

import "errors"

var (
	ErrInvalidSource    = errors.New("invalid source")
	ErrDispatcherClosed = errors.New("dispatcher closed")
)
