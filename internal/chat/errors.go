package chat

import (
	"errors"
	"fmt"

	"chat-sync/internal/repositories"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")

	ErrRoomNotFound    = repositories.ErrRoomNotFound
	ErrMessageNotFound = repositories.ErrMessageNotFound
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
