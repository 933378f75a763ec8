package xmlmap

import (
	"context"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Table is the ordered, immutable list of bindings for records of type T.
type Table[T any] struct {
	root     string
	fields   []Field[T]
	elements map[string]struct{}
}

// NewTable builds a Table whose records serialize as <root> elements.
func NewTable[T any](root string, fields ...Field[T]) (*Table[T], error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty root element name", ErrInvalidTable)
	}

	t := &Table[T]{
		root:     root,
		fields:   make([]Field[T], len(fields)),
		elements: make(map[string]struct{}),
	}
	copy(t.fields, fields)

	attrs := make(map[string]struct{})
	hasText := false
	for i, f := range t.fields {
		d := f.desc
		if err := f.check(); err != nil {
			return nil, fmt.Errorf("%w: %s field %d: %v", ErrInvalidTable, root, i, err)
		}
		switch d.Kind {
		case CharData:
			if hasText {
				return nil, fmt.Errorf("%w: %s: more than one text binding", ErrInvalidTable, root)
			}
			hasText = true
		case Attribute:
			if _, dup := attrs[d.Element]; dup {
				return nil, fmt.Errorf("%w: %s: duplicate attribute %q", ErrInvalidTable, root, d.Element)
			}
			attrs[d.Element] = struct{}{}
		default:
			if _, dup := t.elements[d.Element]; dup {
				return nil, fmt.Errorf("%w: %s: duplicate element %q", ErrInvalidTable, root, d.Element)
			}
			t.elements[d.Element] = struct{}{}
		}
	}
	if hasText && len(t.elements) > 0 {
		return nil, fmt.Errorf("%w: %s: text binding cannot be mixed with element bindings", ErrInvalidTable, root)
	}
	return t, nil
}

// MustTable is like NewTable but panics on error. Intended for package-level vars.
func MustTable[T any](root string, fields ...Field[T]) *Table[T] {
	t, err := NewTable(root, fields...)
	if err != nil {
		panic(err)
	}
	return t
}

func (f Field[T]) check() error {
	d := f.desc
	if d.Kind != CharData && d.Element == "" {
		return fmt.Errorf("%s binding without a name", d.Kind)
	}
	switch d.Kind {
	case Scalar, CharData, Attribute:
		if f.getString == nil || f.setString == nil {
			return fmt.Errorf("%s %q: nil accessor", d.Kind, d.Element)
		}
	case PicklistScalar:
		if d.Vocabulary == "" {
			return fmt.Errorf("picklist %q: empty vocabulary", d.Element)
		}
		if f.getRef == nil || f.setRef == nil {
			return fmt.Errorf("picklist %q: nil accessor", d.Element)
		}
	case SubelementCollection:
		if f.marshalItems == nil || f.unmarshalItems == nil {
			return fmt.Errorf("subelements %q: nil table or accessor", d.Element)
		}
	default:
		return fmt.Errorf("unknown binding kind %d", int(d.Kind))
	}
	return nil
}

// Root returns the element name records of this table serialize as.
func (t *Table[T]) Root() string {
	return t.root
}

// Descriptors returns the bindings in declaration order.
func (t *Table[T]) Descriptors() []Descriptor {
	out := make([]Descriptor, len(t.fields))
	for i, f := range t.fields {
		out[i] = f.desc
	}
	return out
}

// Marshal serializes rec as a <root> element.
func (t *Table[T]) Marshal(ctx context.Context, c *Codec, rec *T) (*etree.Element, error) {
	el := etree.NewElement(t.root)
	if err := t.marshalInto(ctx, c, rec, el); err != nil {
		return nil, err
	}
	return el, nil
}

// Unmarshal parses el into rec. Elements the table does not declare are
// ignored, absent elements leave rec untouched and every declared collection
// is replaced by the items found in el.
func (t *Table[T]) Unmarshal(ctx context.Context, c *Codec, el *etree.Element, rec *T) error {
	if el == nil {
		return fmt.Errorf("%w: nil element", ErrMalformedInput)
	}
	if el.Tag != t.root {
		return fmt.Errorf("%w: expected <%s>, got <%s>", ErrUnexpectedElement, t.root, el.Tag)
	}
	return t.unmarshalFrom(ctx, c, el, rec)
}

// ContentKey returns a string that is equal for two records exactly when
// every bound value is equal.
func (t *Table[T]) ContentKey(rec *T) string {
	var b strings.Builder
	for _, f := range t.fields {
		b.WriteString(f.desc.Element)
		b.WriteByte('=')
		switch f.desc.Kind {
		case PicklistScalar:
			b.WriteString(f.getRef(rec).String())
		case SubelementCollection:
			b.WriteString(f.itemsKey(rec))
		default:
			b.WriteString(f.getString(rec))
		}
		b.WriteByte('\x1f')
	}
	return b.String()
}

func (t *Table[T]) marshalInto(ctx context.Context, c *Codec, rec *T, el *etree.Element) error {
	for _, f := range t.fields {
		d := f.desc
		switch d.Kind {
		case Scalar:
			v := f.getString(rec)
			if v == "" && !d.EmitEmpty {
				continue
			}
			el.CreateElement(d.Element).SetText(v)

		case PicklistScalar:
			ref := f.getRef(rec)
			if ref.IsZero() {
				continue
			}
			if c.picklists == nil {
				return fmt.Errorf("%s: %w", d.Element, ErrNoPicklists)
			}
			text, err := c.picklists.Render(ctx, ref)
			if err != nil {
				return fmt.Errorf("%s: %w", d.Element, err)
			}
			el.CreateElement(d.Element).SetText(text)

		case CharData:
			if v := f.getString(rec); v != "" || d.EmitEmpty {
				el.SetText(v)
			}

		case Attribute:
			if v := f.getString(rec); v != "" || d.EmitEmpty {
				el.CreateAttr(d.Element, v)
			}

		case SubelementCollection:
			if err := f.marshalItems(ctx, c, rec, el); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Table[T]) unmarshalFrom(ctx context.Context, c *Codec, el *etree.Element, rec *T) error {
	children := make(map[string][]*etree.Element)
	for _, child := range el.ChildElements() {
		if _, known := t.elements[child.Tag]; !known {
			c.logger.Debug("ignoring unrecognized element",
				"parent", t.root,
				"element", child.Tag,
			)
			continue
		}
		children[child.Tag] = append(children[child.Tag], child)
	}

	chosen := make(map[string]string)
	for _, f := range t.fields {
		d := f.desc
		switch d.Kind {
		case Scalar:
			matches := children[d.Element]
			if len(matches) == 0 {
				continue
			}
			if len(matches) > 1 {
				c.logger.Warn("repeated scalar element, keeping the first",
					"parent", t.root,
					"element", d.Element,
					"count", len(matches),
				)
			}
			f.setString(rec, matches[0].Text())

		case PicklistScalar:
			matches := children[d.Element]
			if len(matches) == 0 {
				continue
			}
			text := matches[0].Text()
			if text == "" {
				continue
			}
			if d.Choice != "" {
				if winner, taken := chosen[d.Choice]; taken {
					c.logger.Warn("ignoring element that conflicts with an earlier choice",
						"parent", t.root,
						"element", d.Element,
						"kept", winner,
					)
					continue
				}
			}
			if c.picklists == nil {
				return fmt.Errorf("%s: %w", d.Element, ErrNoPicklists)
			}
			ref, err := c.picklists.Resolve(ctx, d.Vocabulary, text)
			if err != nil {
				return fmt.Errorf("%s: %w", d.Element, err)
			}
			f.setRef(rec, ref)
			if d.Choice != "" {
				chosen[d.Choice] = d.Element
			}

		case CharData:
			f.setString(rec, el.Text())

		case Attribute:
			if attr := el.SelectAttr(d.Element); attr != nil {
				f.setString(rec, attr.Value)
			}

		case SubelementCollection:
			if err := f.unmarshalItems(ctx, c, rec, children[d.Element]); err != nil {
				return err
			}
		}
	}
	return nil
}
