package pbcore

import (
	"github.com/jacentio/pbcore/picklist"
	"github.com/jacentio/pbcore/xmlmap"
)

// Namespace is the PBCore 1.x XML namespace written on serialized instantiations.
const Namespace = "http://www.pbcore.org/PBCore/PBCoreNamespace.html"

// Element names of the root and repeated sub-elements.
const (
	ElementDescriptionDocument = "pbcoreDescriptionDocument"
	ElementInstantiation       = "pbcoreInstantiation"
	ElementFormatID            = "pbcoreFormatID"
	ElementEssenceTrack        = "pbcoreEssenceTrack"
	ElementDateAvailable       = "pbcoreDateAvailable"
	ElementAnnotation          = "pbcoreAnnotation"
)

// Picklist vocabularies.
const (
	VocabFormatPhysical    = "formatPhysical"
	VocabFormatDigital     = "formatDigital"
	VocabFormatMediaType   = "formatMediaType"
	VocabFormatGenerations = "formatGenerations"
	VocabFormatColors      = "formatColors"
	VocabEssenceTrackType  = "essenceTrackType"
)

// Vocabularies lists every picklist vocabulary used by instantiations.
func Vocabularies() []string {
	return []string{
		VocabFormatPhysical,
		VocabFormatDigital,
		VocabFormatMediaType,
		VocabFormatGenerations,
		VocabFormatColors,
		VocabEssenceTrackType,
	}
}

func str[T any](element string, field func(*T) *string, opts ...xmlmap.Option) xmlmap.Field[T] {
	return xmlmap.String(element,
		func(rec *T) string { return *field(rec) },
		func(rec *T, v string) { *field(rec) = v },
		opts...)
}

func ref[T any](element, vocabulary string, field func(*T) *picklist.Ref) xmlmap.Field[T] {
	return xmlmap.Picklist(element, vocabulary,
		func(rec *T) picklist.Ref { return *field(rec) },
		func(rec *T, v picklist.Ref) { *field(rec) = v })
}

var formatIDTable = xmlmap.MustTable(ElementFormatID,
	xmlmap.Text(
		func(f *FormatID) string { return f.Identifier },
		func(f *FormatID, v string) { f.Identifier = v }),
	xmlmap.Attr("source",
		func(f *FormatID) string { return f.Source },
		func(f *FormatID, v string) { f.Source = v }),
)

var essenceTrackTable = xmlmap.MustTable(ElementEssenceTrack,
	ref("essenceTrackType", VocabEssenceTrackType, func(e *EssenceTrack) *picklist.Ref { return &e.Type }),
	str("essenceTrackIdentifier", func(e *EssenceTrack) *string { return &e.Identifier }),
	str("essenceTrackIdentifierSource", func(e *EssenceTrack) *string { return &e.IdentifierSource }),
	str("essenceTrackStandard", func(e *EssenceTrack) *string { return &e.Standard }),
	str("essenceTrackEncoding", func(e *EssenceTrack) *string { return &e.Encoding }),
	str("essenceTrackDataRate", func(e *EssenceTrack) *string { return &e.DataRate }),
	str("essenceTrackTimeStart", func(e *EssenceTrack) *string { return &e.TimeStart }),
	str("essenceTrackDuration", func(e *EssenceTrack) *string { return &e.Duration }),
	str("essenceTrackBitDepth", func(e *EssenceTrack) *string { return &e.BitDepth }),
	str("essenceTrackSamplingRate", func(e *EssenceTrack) *string { return &e.SamplingRate }),
	str("essenceTrackFrameSize", func(e *EssenceTrack) *string { return &e.FrameSize }),
	str("essenceTrackAspectRatio", func(e *EssenceTrack) *string { return &e.AspectRatio }),
	str("essenceTrackFrameRate", func(e *EssenceTrack) *string { return &e.FrameRate }),
	str("essenceTrackLanguage", func(e *EssenceTrack) *string { return &e.Language }),
	str("essenceTrackAnnotation", func(e *EssenceTrack) *string { return &e.Annotation }),
)

var dateAvailableTable = xmlmap.MustTable(ElementDateAvailable,
	str("dateAvailableStart", func(d *DateAvailable) *string { return &d.Start }),
	str("dateAvailableEnd", func(d *DateAvailable) *string { return &d.End }),
)

var annotationTable = xmlmap.MustTable(ElementAnnotation,
	xmlmap.Text(
		func(a *Annotation) string { return a.Text },
		func(a *Annotation, v string) { a.Text = v }),
)

// ID and AssetID are deliberately unbound: documents never assign them.
var instantiationTable = xmlmap.MustTable(ElementInstantiation,
	xmlmap.Subelements(formatIDTable,
		func(i *Instantiation) []*FormatID { return i.FormatIDs },
		func(i *Instantiation, v []*FormatID) { i.FormatIDs = v }),
	str("dateCreated", func(i *Instantiation) *string { return &i.DateCreated }),
	str("dateIssued", func(i *Instantiation) *string { return &i.DateIssued }),
	xmlmap.Picklist("formatPhysical", VocabFormatPhysical,
		func(i *Instantiation) picklist.Ref { return i.Format.Physical() },
		func(i *Instantiation, r picklist.Ref) { i.Format = PhysicalFormat(r) },
		xmlmap.Choice("format")),
	xmlmap.Picklist("formatDigital", VocabFormatDigital,
		func(i *Instantiation) picklist.Ref { return i.Format.Digital() },
		func(i *Instantiation, r picklist.Ref) { i.Format = DigitalFormat(r) },
		xmlmap.Choice("format")),
	str("formatLocation", func(i *Instantiation) *string { return &i.FormatLocation }),
	ref("formatMediaType", VocabFormatMediaType, func(i *Instantiation) *picklist.Ref { return &i.MediaType }),
	ref("formatGenerations", VocabFormatGenerations, func(i *Instantiation) *picklist.Ref { return &i.Generation }),
	str("formatFileSize", func(i *Instantiation) *string { return &i.FileSize }),
	str("formatTimeStart", func(i *Instantiation) *string { return &i.TimeStart }),
	str("formatDuration", func(i *Instantiation) *string { return &i.Duration }),
	str("formatDataRate", func(i *Instantiation) *string { return &i.DataRate }),
	ref("formatColors", VocabFormatColors, func(i *Instantiation) *picklist.Ref { return &i.Color }),
	str("formatTracks", func(i *Instantiation) *string { return &i.Tracks }),
	str("formatChannelConfiguration", func(i *Instantiation) *string { return &i.ChannelConfiguration }),
	str("language", func(i *Instantiation) *string { return &i.Language }),
	str("alternativeModes", func(i *Instantiation) *string { return &i.AlternativeModes }),
	xmlmap.Subelements(essenceTrackTable,
		func(i *Instantiation) []*EssenceTrack { return i.EssenceTracks },
		func(i *Instantiation, v []*EssenceTrack) { i.EssenceTracks = v }),
	xmlmap.Subelements(dateAvailableTable,
		func(i *Instantiation) []*DateAvailable { return i.DatesAvailable },
		func(i *Instantiation, v []*DateAvailable) { i.DatesAvailable = v }),
	xmlmap.Subelements(annotationTable,
		func(i *Instantiation) []*Annotation { return i.Annotations },
		func(i *Instantiation, v []*Annotation) { i.Annotations = v }),
)

// ElementOrder returns the instantiation's child element names in schema order.
func ElementOrder() []string {
	descs := instantiationTable.Descriptors()
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Element
	}
	return names
}

// Table returns the instantiation descriptor table.
func Table() *xmlmap.Table[Instantiation] {
	return instantiationTable
}

// ContentKey returns a key that is equal for instantiations with equal bound values.
func ContentKey(inst *Instantiation) string {
	return instantiationTable.ContentKey(inst)
}
