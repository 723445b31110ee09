package notification

import "errors"

var (
	ErrNotFound         = errors.New("notification intent not found")
	ErrNotRetryable     = errors.New("only failed notifications can be retried")
	ErrNotPending       = errors.New("notification is not pending delivery")
	ErrInvalidRecipient = errors.New("notification recipient is required")
	ErrInvalidKind      = errors.New("unknown notification kind")
	ErrInvalidRetention = errors.New("retention must be positive")
)
