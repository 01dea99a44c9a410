package dashsync

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned (or wrapped) by loaders and mutations when the
	// session has no valid token. The cache resets when it sees it.
	ErrUnauthorized = errors.New("dashsync: unauthorized")

	ErrClosed = errors.New("dashsync: closed")
)

// InvalidateError reports an entry whose generation could not be bumped.
// When the payload delete fallback also failed the entry may be served as fresh.
type InvalidateError struct {
	Key     Key
	BumpErr error
	DelErr  error
}

func (e *InvalidateError) Error() string {
	switch {
	case e.BumpErr != nil && e.DelErr != nil:
		return fmt.Sprintf("invalidate %s: gen bump and delete failed: bump=%v; delete=%v",
			e.Key, e.BumpErr, e.DelErr)
	case e.BumpErr != nil:
		return fmt.Sprintf("invalidate %s: gen bump failed (payload dropped): %v", e.Key, e.BumpErr)
	case e.DelErr != nil:
		return fmt.Sprintf("invalidate %s: delete failed: %v", e.Key, e.DelErr)
	default:
		return fmt.Sprintf("invalidate %s: unknown error", e.Key)
	}
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}

// ErrorMessage picks the text shown to the user for a failed operation: the
// server-provided message when err carries one, otherwise fallback. With no
// fallback the error text itself is used.
func ErrorMessage(err error, fallback string) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	if errors.Is(err, ErrUnauthorized) {
		return "Unauthorized"
	}
	if fallback != "" {
		return fallback
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
