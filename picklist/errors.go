package picklist

import "errors"

var (
	// ErrNotFound is returned by a Backend when no entry matches.
	ErrNotFound = errors.New("picklist: entry not found")

	// ErrConflict is returned by Backend.Create when the name is already taken in the vocabulary.
	ErrConflict = errors.New("picklist: entry already exists")

	// ErrDanglingReference is returned by Render when the referenced entry no longer exists.
	ErrDanglingReference = errors.New("picklist: dangling reference")

	// ErrEmptyName is returned when resolving empty display text.
	ErrEmptyName = errors.New("picklist: empty display text")

	// ErrUnknownVocabulary is returned when a vocabulary name is empty.
	ErrUnknownVocabulary = errors.New("picklist: vocabulary name required")

	// ErrRetryExhausted is returned when resolve-or-create kept losing creation races.
	ErrRetryExhausted = errors.New("picklist: resolve retries exhausted")
)
