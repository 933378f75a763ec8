package xmlmap

import (
	"context"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/jacentio/pbcore/picklist"
)

// Kind is the binding kind of a descriptor.
type Kind int

const (
	// Scalar binds a child element's text to a string attribute.
	Scalar Kind = iota + 1

	// PicklistScalar binds a child element's text to a picklist reference.
	PicklistScalar

	// SubelementCollection binds repeated child elements to an owned collection.
	SubelementCollection

	// CharData binds the enclosing element's character data.
	CharData

	// Attribute binds an attribute of the enclosing element.
	Attribute
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case PicklistScalar:
		return "picklist"
	case SubelementCollection:
		return "subelements"
	case CharData:
		return "text"
	case Attribute:
		return "attribute"
	}
	return "unknown"
}

// Descriptor is the read-only description of one binding.
type Descriptor struct {
	// Element is the XML element (or attribute) name. Empty for CharData bindings.
	Element string

	// Kind is the binding kind.
	Kind Kind

	// Vocabulary is the picklist vocabulary for PicklistScalar bindings.
	Vocabulary string

	// EmitEmpty makes the serializer write the element even when its value is empty.
	EmitEmpty bool

	// Choice names a group of mutually exclusive bindings sharing one slot.
	Choice string
}

// Option customizes a binding.
type Option func(*Descriptor)

// EmitEmpty writes the element even when its value is empty.
func EmitEmpty() Option {
	return func(d *Descriptor) { d.EmitEmpty = true }
}

// Choice puts the binding in a group of mutually exclusive bindings.
// When a document carries more than one member of a group, the first in
// declaration order wins and the others are ignored.
func Choice(group string) Option {
	return func(d *Descriptor) { d.Choice = group }
}

// Field is one entry of a Table for records of type T.
type Field[T any] struct {
	desc Descriptor

	getString func(*T) string
	setString func(*T, string)

	getRef func(*T) picklist.Ref
	setRef func(*T, picklist.Ref)

	marshalItems   func(ctx context.Context, c *Codec, rec *T, parent *etree.Element) error
	unmarshalItems func(ctx context.Context, c *Codec, rec *T, elems []*etree.Element) error
	itemsKey       func(rec *T) string
}

// Descriptor returns the binding's description.
func (f Field[T]) Descriptor() Descriptor {
	return f.desc
}

func newDescriptor(element string, kind Kind, opts []Option) Descriptor {
	d := Descriptor{Element: element, Kind: kind}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// String binds a child element's text to a string attribute.
func String[T any](element string, get func(*T) string, set func(*T, string), opts ...Option) Field[T] {
	return Field[T]{
		desc:      newDescriptor(element, Scalar, opts),
		getString: get,
		setString: set,
	}
}

// Picklist binds a child element's text to a picklist reference in vocabulary.
func Picklist[T any](element, vocabulary string, get func(*T) picklist.Ref, set func(*T, picklist.Ref), opts ...Option) Field[T] {
	d := newDescriptor(element, PicklistScalar, opts)
	d.Vocabulary = vocabulary
	return Field[T]{
		desc:   d,
		getRef: get,
		setRef: set,
	}
}

// Text binds the character data of the enclosing element.
func Text[T any](get func(*T) string, set func(*T, string), opts ...Option) Field[T] {
	return Field[T]{
		desc:      newDescriptor("", CharData, opts),
		getString: get,
		setString: set,
	}
}

// Attr binds an attribute of the enclosing element.
func Attr[T any](name string, get func(*T) string, set func(*T, string), opts ...Option) Field[T] {
	return Field[T]{
		desc:      newDescriptor(name, Attribute, opts),
		getString: get,
		setString: set,
	}
}

// OwnedPtr constrains collection items to pointers of C carrying an identity.
type OwnedPtr[C any] interface {
	*C
	Owned
}

// Subelements binds repeated child elements, named after table's root, to an
// owned collection. On parse the collection is replaced wholesale through Sync.
func Subelements[T any, C any, P OwnedPtr[C]](table *Table[C], get func(*T) []P, set func(*T, []P)) Field[T] {
	element := ""
	if table != nil {
		element = table.root
	}
	f := Field[T]{desc: Descriptor{Element: element, Kind: SubelementCollection}}
	if table == nil || get == nil || set == nil {
		return f
	}

	f.marshalItems = func(ctx context.Context, c *Codec, rec *T, parent *etree.Element) error {
		for i, item := range get(rec) {
			if item == nil {
				continue
			}
			child := parent.CreateElement(table.root)
			if err := table.marshalInto(ctx, c, (*C)(item), child); err != nil {
				return fmt.Errorf("%s[%d]: %w", table.root, i, err)
			}
		}
		return nil
	}

	f.unmarshalItems = func(ctx context.Context, c *Codec, rec *T, elems []*etree.Element) error {
		parsed := make([]P, 0, len(elems))
		for i, el := range elems {
			item := new(C)
			if err := table.unmarshalFrom(ctx, c, el, item); err != nil {
				return fmt.Errorf("%s[%d]: %w", table.root, i, err)
			}
			parsed = append(parsed, P(item))
		}

		key := func(p P) string { return table.ContentKey((*C)(p)) }
		next, report := Sync(get(rec), parsed, key, c.newID)
		set(rec, next)

		c.logger.Debug("synchronized collection",
			"element", table.root,
			"items", len(next),
			"created", len(report.Created),
			"updated", len(report.Updated),
			"retained", len(report.Retained),
			"destroyed", len(report.Destroyed),
		)
		if c.onSync != nil {
			c.onSync(table.root, report)
		}
		return nil
	}

	f.itemsKey = func(rec *T) string {
		items := get(rec)
		keys := make([]string, 0, len(items))
		for _, item := range items {
			if item != nil {
				keys = append(keys, table.ContentKey((*C)(item)))
			}
		}
		return "[" + strings.Join(keys, "\x1e") + "]"
	}
	return f
}
