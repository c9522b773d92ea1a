package filetree

import (
	"errors"
	"fmt"

	"project-polaris/backend/internal/store"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnauthorized    = errors.New("unauthorized to access this project")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("name already exists in this location")
	ErrInvalidArgument = errors.New("invalid argument")
)

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// fromStore lifts store sentinels into the service's taxonomy.
func fromStore(what string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return notFound(what)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%s: %w", what, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
