// Package pbcore models PBCore instantiations and maps them to and from the
// PBCore XML vocabulary.
//
// An [Instantiation] is one physical or digital manifestation of a media
// asset. It owns ordered collections of format identifiers, essence tracks,
// availability windows and annotations, and points at shared picklist
// entries for its format, media type, generation and color.
//
// The element order of a serialized instantiation is fixed by the descriptor
// tables in this package (see [ElementOrder]), not by the order in which a
// record's fields were assigned:
//
//	pbcoreFormatID+ dateCreated dateIssued (formatPhysical | formatDigital)
//	formatLocation formatMediaType formatGenerations formatFileSize
//	formatTimeStart formatDuration formatDataRate formatColors formatTracks
//	formatChannelConfiguration language alternativeModes
//	pbcoreEssenceTrack* pbcoreDateAvailable* pbcoreAnnotation*
//
// Parsing never enforces record validity; call [Validate] (or
// [Instantiation.Check]) before persisting.
package pbcore
