package pbcore

import (
	"context"
	"fmt"
	"io"

	"github.com/beevik/etree"

	"github.com/jacentio/pbcore/xmlmap"
)

// Encode serializes inst as a <pbcoreInstantiation> element.
func Encode(ctx context.Context, c *xmlmap.Codec, inst *Instantiation) (*etree.Element, error) {
	el, err := instantiationTable.Marshal(ctx, c, inst)
	if err != nil {
		return nil, fmt.Errorf("encode instantiation: %w", err)
	}
	el.CreateAttr("xmlns", Namespace)
	return el, nil
}

// Write serializes inst as a standalone XML document.
func Write(ctx context.Context, c *xmlmap.Codec, w io.Writer, inst *Instantiation) error {
	el, err := Encode(ctx, c, inst)
	if err != nil {
		return err
	}
	return xmlmap.WriteDocument(w, el)
}

// Decode parses el into inst. el is either a <pbcoreInstantiation> or a
// <pbcoreDescriptionDocument>, in which case its first instantiation is used.
// Existing values absent from el are kept; collections are replaced.
func Decode(ctx context.Context, c *xmlmap.Codec, el *etree.Element, inst *Instantiation) error {
	target, err := instantiationElement(el)
	if err != nil {
		return err
	}
	if err := instantiationTable.Unmarshal(ctx, c, target, inst); err != nil {
		return fmt.Errorf("decode instantiation: %w", err)
	}
	return nil
}

// Parse reads one instantiation from r. It returns no record on error.
func Parse(ctx context.Context, c *xmlmap.Codec, r io.Reader) (*Instantiation, error) {
	el, err := xmlmap.ReadDocument(r)
	if err != nil {
		return nil, err
	}
	inst := &Instantiation{}
	if err := Decode(ctx, c, el, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func instantiationElement(el *etree.Element) (*etree.Element, error) {
	if el == nil {
		return nil, fmt.Errorf("%w: nil element", xmlmap.ErrMalformedInput)
	}
	switch el.Tag {
	case ElementInstantiation:
		return el, nil
	case ElementDescriptionDocument:
		if inst := el.SelectElement(ElementInstantiation); inst != nil {
			return inst, nil
		}
		return nil, fmt.Errorf("%w: %s has no %s", xmlmap.ErrUnexpectedElement, ElementDescriptionDocument, ElementInstantiation)
	}
	return nil, fmt.Errorf("%w: expected <%s>, got <%s>", xmlmap.ErrUnexpectedElement, ElementInstantiation, el.Tag)
}
