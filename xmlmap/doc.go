// Package xmlmap maps Go records to and from XML through declarative field
// descriptor tables.
//
// A [Table] is built once per record type, usually in a package-level var,
// and is immutable afterwards. Each entry binds one XML element (or the
// enclosing element's text or attributes) to an accessor pair on the record:
//
//	var formatIDTable = xmlmap.MustTable("pbcoreFormatID",
//	    xmlmap.Text(func(f *FormatID) string { return f.Identifier }, ...),
//	    xmlmap.Attr("source", func(f *FormatID) string { return f.Source }, ...),
//	)
//
//	var instantiationTable = xmlmap.MustTable("pbcoreInstantiation",
//	    xmlmap.Subelements(formatIDTable, getIDs, setIDs),
//	    xmlmap.String("dateCreated", getDateCreated, setDateCreated),
//	    xmlmap.Picklist("formatColors", "formatColors", getColor, setColor),
//	)
//
// # Binding kinds
//
//   - [String] - scalar element; omitted when empty unless [EmitEmpty] is given
//   - [Picklist] - scalar element whose text is resolved against a picklist
//   - [Subelements] - repeated owned child records with their own table
//   - [Text] - character data of the enclosing element
//   - [Attr] - attribute of the enclosing element
//
// # Ordering
//
// [Table.Marshal] emits children strictly in declaration order, so output
// order never depends on how or when a record's fields were assigned.
// [Table.Unmarshal] matches children by exact local name, ignores the
// namespace prefix, and skips elements the table does not declare.
//
// # Collections
//
// Sub-element collections use replace-all semantics. Parsed items are handed
// to [Sync], which keeps the identity of items whose content is unchanged,
// assigns fresh identities to new items and reports the rest as destroyed.
package xmlmap
