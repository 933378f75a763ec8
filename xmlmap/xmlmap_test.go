package xmlmap_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/beevik/etree"

	"github.com/jacentio/pbcore/picklist"
	"github.com/jacentio/pbcore/xmlmap"
)

// --- Test Record Types ---

// Reel is a root record with one of every binding kind.
type Reel struct {
	Label    string
	Location string
	Gauge    picklist.Ref
	Stock    picklist.Ref
	Digital  picklist.Ref
	Notes    string
	Tracks   []*Track
	Labels   []*Tag
}

// Track is an owned child with nested elements.
type Track struct {
	ID       string
	Kind     picklist.Ref
	Language string
}

func (t *Track) OwnedID() string      { return t.ID }
func (t *Track) SetOwnedID(id string) { t.ID = id }

// Tag is an owned child bound to text and an attribute.
type Tag struct {
	ID     string
	Value  string
	Source string
}

func (t *Tag) OwnedID() string      { return t.ID }
func (t *Tag) SetOwnedID(id string) { t.ID = id }

var trackTable = xmlmap.MustTable("track",
	xmlmap.Picklist("trackType", "trackType",
		func(t *Track) picklist.Ref { return t.Kind },
		func(t *Track, r picklist.Ref) { t.Kind = r }),
	xmlmap.String("trackLanguage",
		func(t *Track) string { return t.Language },
		func(t *Track, v string) { t.Language = v }),
)

var tagTable = xmlmap.MustTable("tag",
	xmlmap.Text(
		func(t *Tag) string { return t.Value },
		func(t *Tag, v string) { t.Value = v }),
	xmlmap.Attr("source",
		func(t *Tag) string { return t.Source },
		func(t *Tag, v string) { t.Source = v }),
)

var reelTable = xmlmap.MustTable("reel",
	xmlmap.Subelements(tagTable,
		func(r *Reel) []*Tag { return r.Labels },
		func(r *Reel, v []*Tag) { r.Labels = v }),
	xmlmap.String("label",
		func(r *Reel) string { return r.Label },
		func(r *Reel, v string) { r.Label = v }),
	xmlmap.Picklist("gauge", "gauge",
		func(r *Reel) picklist.Ref { return r.Gauge },
		func(r *Reel, v picklist.Ref) { r.Gauge = v },
		xmlmap.Choice("carrier")),
	xmlmap.Picklist("digital", "digital",
		func(r *Reel) picklist.Ref { return r.Digital },
		func(r *Reel, v picklist.Ref) { r.Digital = v },
		xmlmap.Choice("carrier")),
	xmlmap.String("location",
		func(r *Reel) string { return r.Location },
		func(r *Reel, v string) { r.Location = v }),
	xmlmap.Picklist("stock", "stock",
		func(r *Reel) picklist.Ref { return r.Stock },
		func(r *Reel, v picklist.Ref) { r.Stock = v }),
	xmlmap.String("notes",
		func(r *Reel) string { return r.Notes },
		func(r *Reel, v string) { r.Notes = v },
		xmlmap.EmitEmpty()),
	xmlmap.Subelements(trackTable,
		func(r *Reel) []*Track { return r.Tracks },
		func(r *Reel, v []*Track) { r.Tracks = v }),
)

// --- Helpers ---

func newTestCodec(opts ...xmlmap.CodecOption) (*xmlmap.Codec, *picklist.Registry, *picklist.MemoryBackend) {
	backend := picklist.NewMemoryBackend()
	reg := picklist.NewRegistry(backend, nil)
	return xmlmap.NewCodec(reg, nil, opts...), reg, backend
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func childTags(el *etree.Element) []string {
	var tags []string
	for _, c := range el.ChildElements() {
		tags = append(tags, c.Tag)
	}
	return tags
}

func parseString(t *testing.T, s string) *etree.Element {
	t.Helper()
	el, err := xmlmap.ReadDocument(strings.NewReader(s))
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	return el
}

func render(t *testing.T, el *etree.Element) string {
	t.Helper()
	var buf bytes.Buffer
	if err := xmlmap.WriteDocument(&buf, el); err != nil {
		t.Fatalf("write document: %v", err)
	}
	return buf.String()
}

// --- Table Construction Tests ---

func TestNewTable_Valid(t *testing.T) {
	descs := reelTable.Descriptors()
	want := []string{"tag", "label", "gauge", "digital", "location", "stock", "notes", "track"}
	if len(descs) != len(want) {
		t.Fatalf("expected %d descriptors, got %d", len(want), len(descs))
	}
	for i, d := range descs {
		if d.Element != want[i] {
			t.Errorf("descriptor %d: expected %q, got %q", i, want[i], d.Element)
		}
	}
	if descs[0].Kind != xmlmap.SubelementCollection {
		t.Errorf("expected subelements kind, got %v", descs[0].Kind)
	}
	if descs[2].Kind != xmlmap.PicklistScalar || descs[2].Vocabulary != "gauge" || descs[2].Choice != "carrier" {
		t.Errorf("unexpected picklist descriptor: %+v", descs[2])
	}
	if !descs[6].EmitEmpty {
		t.Error("expected notes to emit empty")
	}
	if reelTable.Root() != "reel" {
		t.Errorf("expected root 'reel', got %q", reelTable.Root())
	}
}

func TestNewTable_Invalid(t *testing.T) {
	get := func(r *Reel) string { return r.Label }
	set := func(r *Reel, v string) { r.Label = v }

	tests := []struct {
		name   string
		root   string
		fields []xmlmap.Field[Reel]
	}{
		{"empty root", "", nil},
		{"duplicate element", "reel", []xmlmap.Field[Reel]{
			xmlmap.String("label", get, set),
			xmlmap.String("label", get, set),
		}},
		{"empty element name", "reel", []xmlmap.Field[Reel]{
			xmlmap.String("", get, set),
		}},
		{"nil accessor", "reel", []xmlmap.Field[Reel]{
			xmlmap.String("label", nil, set),
		}},
		{"picklist without vocabulary", "reel", []xmlmap.Field[Reel]{
			xmlmap.Picklist("gauge", "",
				func(r *Reel) picklist.Ref { return r.Gauge },
				func(r *Reel, v picklist.Ref) { r.Gauge = v }),
		}},
		{"text mixed with elements", "reel", []xmlmap.Field[Reel]{
			xmlmap.Text(get, set),
			xmlmap.String("location", get, set),
		}},
		{"two text bindings", "reel", []xmlmap.Field[Reel]{
			xmlmap.Text(get, set),
			xmlmap.Text(get, set),
		}},
		{"duplicate attribute", "reel", []xmlmap.Field[Reel]{
			xmlmap.Attr("id", get, set),
			xmlmap.Attr("id", get, set),
		}},
		{"nil subelement table", "reel", []xmlmap.Field[Reel]{
			xmlmap.Subelements[Reel, Track](nil,
				func(r *Reel) []*Track { return r.Tracks },
				func(r *Reel, v []*Track) { r.Tracks = v }),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := xmlmap.NewTable(tt.root, tt.fields...)
			if !errors.Is(err, xmlmap.ErrInvalidTable) {
				t.Errorf("expected ErrInvalidTable, got %v", err)
			}
		})
	}
}

func TestMustTable_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for invalid table")
		}
	}()
	xmlmap.MustTable[Reel]("")
}

func TestKind_String(t *testing.T) {
	tests := map[xmlmap.Kind]string{
		xmlmap.Scalar:               "scalar",
		xmlmap.PicklistScalar:       "picklist",
		xmlmap.SubelementCollection: "subelements",
		xmlmap.CharData:             "text",
		xmlmap.Attribute:            "attribute",
		xmlmap.Kind(99):             "unknown",
	}
	for k, want := range tests {
		if k.String() != want {
			t.Errorf("expected %q, got %q", want, k.String())
		}
	}
}

// --- Marshal Tests ---

func TestMarshal_DeclarationOrder(t *testing.T) {
	ctx := context.Background()
	codec, reg, _ := newTestCodec()

	// Assign in reverse of declaration order.
	r := &Reel{}
	r.Tracks = []*Track{{ID: "t1", Language: "eng"}}
	r.Notes = "n"
	r.Stock, _ = reg.Resolve(ctx, "stock", "Kodak")
	r.Location = "Vault 2"
	r.Gauge, _ = reg.Resolve(ctx, "gauge", "16mm")
	r.Label = "Reel 1"
	r.Labels = []*Tag{{ID: "g1", Value: "A"}}

	el, err := reelTable.Marshal(ctx, codec, r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := []string{"tag", "label", "gauge", "location", "stock", "notes", "track"}
	if got := childTags(el); !reflect.DeepEqual(got, want) {
		t.Errorf("expected order %v, got %v", want, got)
	}
	if el.Tag != "reel" {
		t.Errorf("expected root 'reel', got %q", el.Tag)
	}
}

func TestMarshal_OmitsEmpty(t *testing.T) {
	codec, _, _ := newTestCodec()
	el, err := reelTable.Marshal(context.Background(), codec, &Reel{Location: "Shelf"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := []string{"location", "notes"}
	if got := childTags(el); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if notes := el.SelectElement("notes"); notes == nil || notes.Text() != "" {
		t.Error("expected empty <notes> element")
	}
}

func TestMarshal_NoElementTwice(t *testing.T) {
	ctx := context.Background()
	codec, reg, _ := newTestCodec()
	r := &Reel{Label: "x", Location: "y"}
	r.Gauge, _ = reg.Resolve(ctx, "gauge", "35mm")

	el, _ := reelTable.Marshal(ctx, codec, r)
	seen := map[string]int{}
	for _, tag := range childTags(el) {
		seen[tag]++
	}
	for tag, n := range seen {
		if n > 1 {
			t.Errorf("element %q emitted %d times", tag, n)
		}
	}
}

func TestMarshal_TextAndAttribute(t *testing.T) {
	codec, _, _ := newTestCodec()
	r := &Reel{Labels: []*Tag{{Value: "AAPB12345", Source: "AAPB"}, {Value: "local-1"}}}

	el, err := reelTable.Marshal(context.Background(), codec, r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	tags := el.SelectElements("tag")
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(tags))
	}
	if tags[0].Text() != "AAPB12345" || tags[0].SelectAttrValue("source", "") != "AAPB" {
		t.Errorf("unexpected first tag: %q source=%q", tags[0].Text(), tags[0].SelectAttrValue("source", ""))
	}
	if tags[1].SelectAttr("source") != nil {
		t.Error("expected empty attribute to be omitted")
	}
}

func TestMarshal_DanglingPicklist(t *testing.T) {
	ctx := context.Background()
	codec, reg, backend := newTestCodec()
	ref, _ := reg.Resolve(ctx, "gauge", "8mm")
	_ = backend.Remove(ctx, ref)

	_, err := reelTable.Marshal(ctx, codec, &Reel{Gauge: ref})
	if !errors.Is(err, picklist.ErrDanglingReference) {
		t.Errorf("expected ErrDanglingReference, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "gauge") {
		t.Errorf("expected element name in error, got %q", err.Error())
	}
}

func TestMarshal_DanglingInCollection(t *testing.T) {
	ctx := context.Background()
	codec, _, _ := newTestCodec()
	r := &Reel{Tracks: []*Track{{Kind: picklist.Ref{Vocabulary: "trackType", ID: "gone"}}}}

	_, err := reelTable.Marshal(ctx, codec, r)
	if !errors.Is(err, picklist.ErrDanglingReference) {
		t.Errorf("expected ErrDanglingReference, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "track[0]") {
		t.Errorf("expected item position in error, got %q", err.Error())
	}
}

func TestMarshal_NoPicklists(t *testing.T) {
	codec := xmlmap.NewCodec(nil, nil)
	_, err := reelTable.Marshal(context.Background(), codec, &Reel{Gauge: picklist.Ref{Vocabulary: "gauge", ID: "x"}})
	if !errors.Is(err, xmlmap.ErrNoPicklists) {
		t.Errorf("expected ErrNoPicklists, got %v", err)
	}
}

// --- Unmarshal Tests ---

func TestUnmarshal_Scalars(t *testing.T) {
	codec, _, _ := newTestCodec()
	el := parseString(t, `<reel><label>  Reel 7 </label><location></location></reel>`)

	r := &Reel{Location: "previous"}
	if err := reelTable.Unmarshal(context.Background(), codec, el, r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Label != "  Reel 7 " {
		t.Errorf("expected verbatim text, got %q", r.Label)
	}
	if r.Location != "" {
		t.Errorf("expected empty string assigned, got %q", r.Location)
	}
}

func TestUnmarshal_MissingLeavesDefault(t *testing.T) {
	codec, _, _ := newTestCodec()
	el := parseString(t, `<reel><label>L</label></reel>`)

	r := &Reel{Notes: "keep"}
	if err := reelTable.Unmarshal(context.Background(), codec, el, r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Notes != "keep" {
		t.Errorf("expected absent element to leave value, got %q", r.Notes)
	}
	if !r.Gauge.IsZero() {
		t.Error("expected absent picklist to stay unset")
	}
}

func TestUnmarshal_IgnoresUnknownAndCaseMismatch(t *testing.T) {
	codec, _, _ := newTestCodec()
	el := parseString(t, `<reel><Label>wrong case</Label><futureElement>x</futureElement><label>ok</label></reel>`)

	r := &Reel{}
	if err := reelTable.Unmarshal(context.Background(), codec, el, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Label != "ok" {
		t.Errorf("expected 'ok', got %q", r.Label)
	}
}

func TestUnmarshal_NamespacePrefixIgnored(t *testing.T) {
	codec, _, _ := newTestCodec()
	el := parseString(t, `<pb:reel xmlns:pb="urn:test"><pb:label>ns</pb:label><pb:tag pb:source="S">v</pb:tag></pb:reel>`)

	r := &Reel{}
	if err := reelTable.Unmarshal(context.Background(), codec, el, r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Label != "ns" {
		t.Errorf("expected 'ns', got %q", r.Label)
	}
	if len(r.Labels) != 1 || r.Labels[0].Value != "v" || r.Labels[0].Source != "S" {
		t.Errorf("unexpected labels: %+v", r.Labels)
	}
}

func TestUnmarshal_WrongRoot(t *testing.T) {
	codec, _, _ := newTestCodec()
	el := parseString(t, `<tape><label>x</label></tape>`)
	err := reelTable.Unmarshal(context.Background(), codec, el, &Reel{})
	if !errors.Is(err, xmlmap.ErrUnexpectedElement) {
		t.Errorf("expected ErrUnexpectedElement, got %v", err)
	}
}

func TestUnmarshal_PicklistResolves(t *testing.T) {
	ctx := context.Background()
	codec, reg, _ := newTestCodec()
	el := parseString(t, `<reel><stock>Kodak</stock></reel>`)

	r := &Reel{}
	if err := reelTable.Unmarshal(ctx, codec, el, r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want, _ := reg.Resolve(ctx, "stock", "Kodak")
	if r.Stock != want {
		t.Errorf("expected %v, got %v", want, r.Stock)
	}
}

func TestUnmarshal_EmptyPicklistLeavesUnset(t *testing.T) {
	ctx := context.Background()
	codec, reg, _ := newTestCodec()
	el := parseString(t, `<reel><stock></stock></reel>`)

	r := &Reel{}
	if err := reelTable.Unmarshal(ctx, codec, el, r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !r.Stock.IsZero() {
		t.Errorf("expected unset stock, got %v", r.Stock)
	}
	if entries, _ := reg.List(ctx, "stock"); len(entries) != 0 {
		t.Errorf("expected no picklist entries, got %d", len(entries))
	}
}

func TestUnmarshal_ChoiceFirstWins(t *testing.T) {
	ctx := context.Background()
	codec, reg, _ := newTestCodec()
	el := parseString(t, `<reel><digital>File</digital><gauge>16mm</gauge></reel>`)

	r := &Reel{}
	if err := reelTable.Unmarshal(ctx, codec, el, r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Gauge.IsZero() {
		t.Error("expected the first declared choice to be assigned")
	}
	if !r.Digital.IsZero() {
		t.Error("expected the later choice to be ignored")
	}
	if entries, _ := reg.List(ctx, "digital"); len(entries) != 0 {
		t.Errorf("expected ignored choice not to create picklist entries, got %d", len(entries))
	}
}

func TestUnmarshal_RepeatedScalarKeepsFirst(t *testing.T) {
	codec, _, _ := newTestCodec()
	el := parseString(t, `<reel><label>first</label><label>second</label></reel>`)
	r := &Reel{}
	if err := reelTable.Unmarshal(context.Background(), codec, el, r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Label != "first" {
		t.Errorf("expected 'first', got %q", r.Label)
	}
}

func TestUnmarshal_CollectionOrder(t *testing.T) {
	codec, _, _ := newTestCodec(xmlmap.WithIDGenerator(sequentialIDs()))
	el := parseString(t, `<reel>
		<track><trackLanguage>eng</trackLanguage></track>
		<label>x</label>
		<track><trackLanguage>spa</trackLanguage></track>
		<track><trackLanguage>fra</trackLanguage></track>
	</reel>`)

	r := &Reel{}
	if err := reelTable.Unmarshal(context.Background(), codec, el, r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var langs []string
	for _, tr := range r.Tracks {
		langs = append(langs, tr.Language)
	}
	if want := []string{"eng", "spa", "fra"}; !reflect.DeepEqual(langs, want) {
		t.Errorf("expected %v, got %v", want, langs)
	}
	if r.Tracks[0].ID != "id-1" || r.Tracks[2].ID != "id-3" {
		t.Errorf("expected sequential ids, got %q..%q", r.Tracks[0].ID, r.Tracks[2].ID)
	}
}

func TestUnmarshal_CollectionReplace(t *testing.T) {
	var reports []xmlmap.SyncReport
	codec, _, _ := newTestCodec(
		xmlmap.WithIDGenerator(sequentialIDs()),
		xmlmap.WithSyncHook(func(element string, report xmlmap.SyncReport) {
			if element == "track" {
				reports = append(reports, report)
			}
		}),
	)

	r := &Reel{Tracks: []*Track{
		{ID: "a", Language: "eng"},
		{ID: "b", Language: "spa"},
		{ID: "c", Language: "fra"},
	}}
	el := parseString(t, `<reel><track><trackLanguage>spa</trackLanguage></track></reel>`)
	if err := reelTable.Unmarshal(context.Background(), codec, el, r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(r.Tracks) != 1 || r.Tracks[0].Language != "spa" {
		t.Fatalf("expected single 'spa' track, got %+v", r.Tracks)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 sync report, got %d", len(reports))
	}
	rep := reports[0]
	if !reflect.DeepEqual(rep.Destroyed, []string{"a", "c"}) {
		t.Errorf("expected destroyed [a c], got %v", rep.Destroyed)
	}
	if !reflect.DeepEqual(rep.Retained, []string{"b"}) {
		t.Errorf("expected retained [b], got %v", rep.Retained)
	}
	if len(rep.Created) != 0 {
		t.Errorf("expected nothing created, got %v", rep.Created)
	}
}

func TestUnmarshal_AbsentCollectionEmpties(t *testing.T) {
	codec, _, _ := newTestCodec()
	r := &Reel{Labels: []*Tag{{ID: "x", Value: "old"}}}
	el := parseString(t, `<reel><label>L</label></reel>`)
	if err := reelTable.Unmarshal(context.Background(), codec, el, r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(r.Labels) != 0 {
		t.Errorf("expected collection replaced by empty list, got %d items", len(r.Labels))
	}
}

// --- Round Trip Tests ---

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	codec, reg, _ := newTestCodec()

	orig := &Reel{Label: "Reel 3B", Location: "Vault", Notes: "fragile & old <1950>"}
	orig.Digital, _ = reg.Resolve(ctx, "digital", "video/mpeg")
	orig.Stock, _ = reg.Resolve(ctx, "stock", "Agfa")
	orig.Labels = []*Tag{{ID: "1", Value: "A-1", Source: "local"}, {ID: "2", Value: "B-2"}}
	kind, _ := reg.Resolve(ctx, "trackType", "Audio")
	orig.Tracks = []*Track{{ID: "t", Kind: kind, Language: "eng"}, {ID: "u", Language: "zxx"}}

	el, err := reelTable.Marshal(ctx, codec, orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	first := render(t, el)

	parsed := &Reel{}
	if err := reelTable.Unmarshal(ctx, codec, parseString(t, first), parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.Notes != orig.Notes || parsed.Label != orig.Label || parsed.Location != orig.Location {
		t.Errorf("scalar mismatch: %+v vs %+v", parsed, orig)
	}
	if parsed.Digital != orig.Digital || parsed.Stock != orig.Stock {
		t.Error("expected picklist refs to resolve to the same entries")
	}
	if reelTable.ContentKey(parsed) != reelTable.ContentKey(orig) {
		t.Error("expected equal content keys after round trip")
	}

	el2, err := reelTable.Marshal(ctx, codec, parsed)
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}
	if second := render(t, el2); second != first {
		t.Errorf("serialize-parse-serialize not idempotent:\n%s\n---\n%s", first, second)
	}
}

// --- Document Tests ---

func TestReadDocument_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "   \n"},
		{"text only", "not xml at all"},
		{"truncated", `<reel><label>x</label`},
		{"unquoted attribute", `<reel id=1></reel>`},
		{"two roots", `<reel></reel><reel></reel>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := xmlmap.ReadDocument(strings.NewReader(tt.input))
			if !errors.Is(err, xmlmap.ErrMalformedInput) {
				t.Errorf("expected ErrMalformedInput, got %v", err)
			}
			if el != nil {
				t.Error("expected no element on error")
			}
		})
	}
}

func TestWriteDocument_Declaration(t *testing.T) {
	out := render(t, etree.NewElement("reel"))
	if !strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Errorf("expected xml declaration, got %q", out)
	}
}

// --- ContentKey Tests ---

func TestContentKey(t *testing.T) {
	a := &Track{ID: "1", Language: "eng"}
	b := &Track{ID: "2", Language: "eng"}
	c := &Track{ID: "1", Language: "spa"}
	if trackTable.ContentKey(a) != trackTable.ContentKey(b) {
		t.Error("expected identity to be excluded from content key")
	}
	if trackTable.ContentKey(a) == trackTable.ContentKey(c) {
		t.Error("expected different content to produce different keys")
	}
}
