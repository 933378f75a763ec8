package xmlmap

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/jacentio/pbcore/picklist"
)

// Picklists resolves and renders picklist values for the codec.
// *picklist.Registry satisfies it.
type Picklists interface {
	Resolve(ctx context.Context, vocabulary, text string) (picklist.Ref, error)
	Render(ctx context.Context, ref picklist.Ref) (string, error)
}

// Codec carries the collaborators tables need at marshal and unmarshal time.
// A Codec is safe for concurrent use if its Picklists is.
type Codec struct {
	picklists Picklists
	logger    *slog.Logger
	newID     func() string
	onSync    func(element string, report SyncReport)
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithIDGenerator overrides how identities of new collection items are generated.
func WithIDGenerator(newID func() string) CodecOption {
	return func(c *Codec) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// WithSyncHook registers a callback invoked after each collection sync during Unmarshal.
func WithSyncHook(hook func(element string, report SyncReport)) CodecOption {
	return func(c *Codec) { c.onSync = hook }
}

// NewCodec creates a Codec. picklists may be nil for tables without picklist bindings.
func NewCodec(picklists Picklists, logger *slog.Logger, opts ...CodecOption) *Codec {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Codec{
		picklists: picklists,
		logger:    logger,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReadDocument parses r and returns the root element. Input that is not
// well-formed, or has no single root element, fails with ErrMalformedInput.
func ReadDocument(r io.Reader) (*etree.Element, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	roots := doc.ChildElements()
	switch len(roots) {
	case 0:
		return nil, fmt.Errorf("%w: no root element", ErrMalformedInput)
	case 1:
		return roots[0], nil
	default:
		return nil, fmt.Errorf("%w: %d root elements", ErrMalformedInput, len(roots))
	}
}

// WriteDocument writes root as an indented XML document with a declaration.
func WriteDocument(w io.Writer, root *etree.Element) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.AddChild(root)
	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("write xml: %w", err)
	}
	return nil
}
