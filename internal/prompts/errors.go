package prompts

import "errors"

var (
	// ErrProfileNotFound is returned when no profile exists for a supplier key.
	ErrProfileNotFound = errors.New("supplier profile not found")

	// ErrProfileExists is returned by Add when the key is already taken.
	ErrProfileExists = errors.New("supplier profile already exists")

	// ErrDefaultProtected is returned when removing the default profile.
	ErrDefaultProtected = errors.New("the default profile cannot be removed")

	// ErrInvalidKey is returned for supplier names that normalize to an empty key.
	ErrInvalidKey = errors.New("invalid supplier key")

	// ErrEmptyPrompt is returned when a profile would be saved without prompt text.
	ErrEmptyPrompt = errors.New("prompt text is empty")
)
