package picklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"
)

// DefaultMaxAttempts bounds lookup/create rounds in Resolve.
const DefaultMaxAttempts = 3

// Ref identifies a picklist entry. The zero Ref means "unset".
type Ref struct {
	Vocabulary string
	ID         string
}

// IsZero reports whether the reference is unset.
func (r Ref) IsZero() bool {
	return r.ID == ""
}

// String returns the type-qualified reference (e.g., "formatColors#uuid").
func (r Ref) String() string {
	return r.Vocabulary + "#" + r.ID
}

// ParseRef parses the output of Ref.String. The empty string parses to the zero Ref.
func ParseRef(s string) (Ref, error) {
	if s == "" {
		return Ref{}, nil
	}
	vocabulary, id, ok := strings.Cut(s, "#")
	if !ok || vocabulary == "" || id == "" {
		return Ref{}, fmt.Errorf("picklist: malformed reference %q", s)
	}
	return Ref{Vocabulary: vocabulary, ID: id}, nil
}

// Entry is a stored picklist entity.
type Entry struct {
	Ref  Ref
	Name string
}

// Backend stores picklist entries.
type Backend interface {
	// Lookup finds an entry by exact name. Returns ErrNotFound on a miss.
	Lookup(ctx context.Context, vocabulary, name string) (Entry, error)

	// Create inserts a new entry. Returns ErrConflict if the name already exists
	// in the vocabulary.
	Create(ctx context.Context, vocabulary, name string) (Entry, error)

	// Get loads an entry by reference. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, ref Ref) (Entry, error)

	// List returns all entries of a vocabulary.
	List(ctx context.Context, vocabulary string) ([]Entry, error)
}

// Registry resolves display text to entries, creating them on demand.
type Registry struct {
	backend     Backend
	logger      *slog.Logger
	maxAttempts int
	inflight    singleflight.Group
}

// NewRegistry creates a Registry over backend.
func NewRegistry(backend Backend, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		backend:     backend,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
	}
}

// SetMaxAttempts overrides the number of lookup/create rounds (minimum 1).
func (r *Registry) SetMaxAttempts(n int) {
	if n < 1 {
		n = 1
	}
	r.maxAttempts = n
}

// Resolve returns the entry whose name is exactly text, creating it if absent.
func (r *Registry) Resolve(ctx context.Context, vocabulary, text string) (Ref, error) {
	if vocabulary == "" {
		return Ref{}, ErrUnknownVocabulary
	}
	if text == "" {
		return Ref{}, fmt.Errorf("%s: %w", vocabulary, ErrEmptyName)
	}

	// The shared resolve outlives any one caller's cancellation.
	ch := r.inflight.DoChan(vocabulary+"\x00"+text, func() (any, error) {
		return r.resolve(context.WithoutCancel(ctx), vocabulary, text)
	})
	select {
	case <-ctx.Done():
		return Ref{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Ref{}, res.Err
		}
		return res.Val.(Ref), nil
	}
}

func (r *Registry) resolve(ctx context.Context, vocabulary, text string) (Ref, error) {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		entry, err := r.backend.Lookup(ctx, vocabulary, text)
		if err == nil {
			return entry.Ref, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Ref{}, fmt.Errorf("lookup %s %q: %w", vocabulary, text, err)
		}

		entry, err = r.backend.Create(ctx, vocabulary, text)
		if err == nil {
			r.logger.Debug("created picklist entry",
				"vocabulary", vocabulary,
				"name", text,
				"ref", entry.Ref.String(),
			)
			return entry.Ref, nil
		}
		if !errors.Is(err, ErrConflict) {
			return Ref{}, fmt.Errorf("create %s %q: %w", vocabulary, text, err)
		}

		// Another writer created it between our lookup and create.
		r.logger.Debug("picklist create lost race, retrying lookup",
			"vocabulary", vocabulary,
			"name", text,
			"attempt", attempt,
		)
	}
	return Ref{}, fmt.Errorf("%w: %s %q", ErrRetryExhausted, vocabulary, text)
}

// Render returns the display text of ref.
func (r *Registry) Render(ctx context.Context, ref Ref) (string, error) {
	if ref.IsZero() {
		return "", fmt.Errorf("%w: empty reference", ErrDanglingReference)
	}
	entry, err := r.backend.Get(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrDanglingReference, ref)
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", ref, err)
	}
	return entry.Name, nil
}

// List returns all entries of a vocabulary.
func (r *Registry) List(ctx context.Context, vocabulary string) ([]Entry, error) {
	if vocabulary == "" {
		return nil, ErrUnknownVocabulary
	}
	return r.backend.List(ctx, vocabulary)
}
