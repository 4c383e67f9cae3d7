package credits

import "errors"

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrAccountNotFound     = errors.New("account not found")
	ErrUnknownAction       = errors.New("unknown action")
)
