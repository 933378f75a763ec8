package pbcore

import (
	"context"
	"strings"

	"github.com/jacentio/pbcore/picklist"
)

// Medium discriminates physical from digital formats.
type Medium string

const (
	MediumPhysical Medium = "physical"
	MediumDigital  Medium = "digital"
)

// FormatChoice is the single format slot of an instantiation. It is either
// unset, a formatPhysical entry or a formatDigital entry, never both.
type FormatChoice struct {
	Medium Medium
	Ref    picklist.Ref
}

// PhysicalFormat returns a format choice for a formatPhysical entry.
func PhysicalFormat(ref picklist.Ref) FormatChoice {
	if ref.IsZero() {
		return FormatChoice{}
	}
	return FormatChoice{Medium: MediumPhysical, Ref: ref}
}

// DigitalFormat returns a format choice for a formatDigital entry.
func DigitalFormat(ref picklist.Ref) FormatChoice {
	if ref.IsZero() {
		return FormatChoice{}
	}
	return FormatChoice{Medium: MediumDigital, Ref: ref}
}

// IsZero reports whether no format is set.
func (f FormatChoice) IsZero() bool {
	return f.Ref.IsZero()
}

// Physical returns the reference if the format is physical.
func (f FormatChoice) Physical() picklist.Ref {
	if f.Medium != MediumPhysical {
		return picklist.Ref{}
	}
	return f.Ref
}

// Digital returns the reference if the format is digital.
func (f FormatChoice) Digital() picklist.Ref {
	if f.Medium != MediumDigital {
		return picklist.Ref{}
	}
	return f.Ref
}

// Asset is the intellectual content an instantiation manifests.
type Asset struct {
	ID    string
	Title string
}

// Instantiation is one physical or digital manifestation of an asset.
type Instantiation struct {
	ID      string
	AssetID string
	Version int64

	DateCreated          string
	DateIssued           string
	Format               FormatChoice
	FormatLocation       string
	MediaType            picklist.Ref
	Generation           picklist.Ref
	FileSize             string
	TimeStart            string
	Duration             string
	DataRate             string
	Color                picklist.Ref
	Tracks               string
	ChannelConfiguration string
	Language             string
	AlternativeModes     string

	FormatIDs      []*FormatID
	EssenceTracks  []*EssenceTrack
	DatesAvailable []*DateAvailable
	Annotations    []*Annotation
}

// FormatID is an identifier of the instantiation, e.g. a barcode or file name.
type FormatID struct {
	ID         string
	Identifier string
	Source     string
}

func (f *FormatID) OwnedID() string      { return f.ID }
func (f *FormatID) SetOwnedID(id string) { f.ID = id }

// EssenceTrack describes one track (video, audio, caption, ...) of the instantiation.
type EssenceTrack struct {
	ID               string
	Type             picklist.Ref
	Identifier       string
	IdentifierSource string
	Standard         string
	Encoding         string
	DataRate         string
	TimeStart        string
	Duration         string
	BitDepth         string
	SamplingRate     string
	FrameSize        string
	AspectRatio      string
	FrameRate        string
	Language         string
	Annotation       string
}

func (e *EssenceTrack) OwnedID() string      { return e.ID }
func (e *EssenceTrack) SetOwnedID(id string) { e.ID = id }

// DateAvailable is an availability window.
type DateAvailable struct {
	ID    string
	Start string
	End   string
}

func (d *DateAvailable) OwnedID() string      { return d.ID }
func (d *DateAvailable) SetOwnedID(id string) { d.ID = id }

// Annotation is a free-text note on the instantiation.
type Annotation struct {
	ID   string
	Text string
}

func (a *Annotation) OwnedID() string      { return a.ID }
func (a *Annotation) SetOwnedID(id string) { a.ID = id }

// Renderer returns the display text of a picklist reference.
type Renderer interface {
	Render(ctx context.Context, ref picklist.Ref) (string, error)
}

// Identifier joins all format identifiers with "; ".
func (i *Instantiation) Identifier() string {
	return strings.Join(i.identifiers(), "; ")
}

// Summary is a one-line label: identifiers, format name and issue date.
// Returns "(instantiation)" when all three are empty.
func (i *Instantiation) Summary(ctx context.Context, r Renderer) (string, error) {
	var b strings.Builder
	b.WriteString(strings.Join(i.identifiers(), " / "))
	if !i.Format.IsZero() {
		name, err := r.Render(ctx, i.Format.Ref)
		if err != nil {
			return "", err
		}
		b.WriteString(" (" + name + ")")
	}
	b.WriteString(" " + i.DateIssued)

	summary := strings.TrimSpace(b.String())
	if summary == "" {
		return "(instantiation)", nil
	}
	return summary, nil
}

// AnnotationText returns the annotations as "[a; b]". ok is false when there
// are none.
func (i *Instantiation) AnnotationText() (text string, ok bool) {
	if len(i.Annotations) == 0 {
		return "", false
	}
	parts := make([]string, 0, len(i.Annotations))
	for _, a := range i.Annotations {
		parts = append(parts, a.Text)
	}
	return "[" + strings.Join(parts, "; ") + "]", true
}

func (i *Instantiation) identifiers() []string {
	ids := make([]string, 0, len(i.FormatIDs))
	for _, f := range i.FormatIDs {
		ids = append(ids, f.Identifier)
	}
	return ids
}
