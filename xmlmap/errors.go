package xmlmap

import "errors"

var (
	// ErrMalformedInput is returned when the input is not well-formed XML.
	ErrMalformedInput = errors.New("xmlmap: malformed input")

	// ErrUnexpectedElement is returned when an element does not match the table's root.
	ErrUnexpectedElement = errors.New("xmlmap: unexpected element")

	// ErrInvalidTable is returned when a descriptor table is inconsistent.
	ErrInvalidTable = errors.New("xmlmap: invalid descriptor table")

	// ErrNoPicklists is returned when a picklist binding is used without a registry.
	ErrNoPicklists = errors.New("xmlmap: no picklist registry configured")
)
