package notify

import "errors"

var (
	// ErrValidation marks a malformed business payload (missing title,
	// message or type). Rejected before anything is persisted.
	ErrValidation = errors.New("invalid notification payload")

	// ErrUnknownType marks a send for a type no caller registered at
	// startup. Rejected rather than silently defaulted.
	ErrUnknownType = errors.New("unregistered notification type")

	// ErrRecipientNotFound marks a recipient id the identity resolver
	// could not resolve.
	ErrRecipientNotFound = errors.New("recipient not found")
)
