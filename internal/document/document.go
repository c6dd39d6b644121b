// Package document turns a flat delta operation log into a typed, renderable
// tree. Building is pure: the only I/O is the optional note loader used to
// resolve transclusions.
package document

import "encoding/json"

// Document is the tree produced from one note. Nested documents appear where
// a note reference was resolved through a loader.
type Document struct {
	NoteID  string  `json:"note_id"`
	Title   string  `json:"title"`
	Variant string  `json:"variant,omitempty"`
	Blocks  []Block `json:"blocks"`
}

// Block is a top-level element of a document: a paragraph, an unresolved
// note reference, or a resolved nested document.
type Block interface {
	isBlock()
}

// Paragraph is a single line of content with an optional heading attribute
// ("", "h1" or "h2").
type Paragraph struct {
	Attribute string `json:"attribute"`
	Line      Line   `json:"line"`
}

// NoteRefPlaceholder stands in for a note reference when no loader was
// supplied; the caller resolves it independently.
type NoteRefPlaceholder struct {
	NoteID string `json:"note_id"`
}

func (Paragraph) isBlock()          {}
func (NoteRefPlaceholder) isBlock() {}
func (*Document) isBlock()          {}

// Line is an ordered run of inline nodes.
type Line struct {
	Nodes []Node `json:"nodes"`
}

// Node is an inline element: plain text, a formula, a decorated span, or a
// list.
type Node interface {
	isNode()
}

// Text is a plain string node.
type Text string

// Formula is a rendered math formula node.
type Formula struct {
	Value        string `json:"value"`
	DisplayStyle bool   `json:"displaystyle,omitempty"`
}

// Span decorates a child node with inline formats, outermost first. The
// reserved format "error" marks an inline diagnostic produced from malformed
// content.
type Span struct {
	Formats []string `json:"formats"`
	Child   Node     `json:"child"`
}

// List groups consecutive same-kind list lines. For choice lists, Lines are
// in displayed (permuted) order once materialized for a submission, and
// Selected holds the displayed index of the stored answer.
type List struct {
	Kind     string `json:"kind"`
	Lines    []Line `json:"lines"`
	Selected *int   `json:"selected,omitempty"`
}

func (Text) isNode()    {}
func (Formula) isNode() {}
func (*Span) isNode()   {}
func (*List) isNode()   {}

// ErrorSpan builds the inline diagnostic node used for malformed embeds,
// circular references and depth cutoffs.
func ErrorSpan(message string) *Span {
	return &Span{Formats: []string{"error"}, Child: Text(message)}
}

// JSON encoding below keeps the union shapes explicit: plain text stays a
// bare string, every other variant is wrapped in a single-key object.

func (t Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(t))
}

func (f Formula) MarshalJSON() ([]byte, error) {
	type alias Formula
	return json.Marshal(map[string]alias{"formula": alias(f)})
}

func (s *Span) MarshalJSON() ([]byte, error) {
	type alias Span
	return json.Marshal(map[string]*alias{"span": (*alias)(s)})
}

func (l *List) MarshalJSON() ([]byte, error) {
	type alias List
	return json.Marshal(map[string]*alias{"list": (*alias)(l)})
}

func (p Paragraph) MarshalJSON() ([]byte, error) {
	type alias Paragraph
	return json.Marshal(map[string]alias{"paragraph": alias(p)})
}

func (n NoteRefPlaceholder) MarshalJSON() ([]byte, error) {
	type alias NoteRefPlaceholder
	return json.Marshal(map[string]alias{"note_ref": alias(n)})
}

// Document marshals plain at the root; in block position (a resolved
// transclusion) it is wrapped like the other union members. The wrapping
// happens here because Blocks is the only place a document nests.
func (d *Document) MarshalJSON() ([]byte, error) {
	type alias struct {
		NoteID  string            `json:"note_id"`
		Title   string            `json:"title"`
		Variant string            `json:"variant,omitempty"`
		Blocks  []json.RawMessage `json:"blocks"`
	}

	out := alias{
		NoteID:  d.NoteID,
		Title:   d.Title,
		Variant: d.Variant,
		Blocks:  make([]json.RawMessage, 0, len(d.Blocks)),
	}
	for _, b := range d.Blocks {
		var (
			raw []byte
			err error
		)
		if child, ok := b.(*Document); ok {
			raw, err = json.Marshal(map[string]*Document{"document": child})
		} else {
			raw, err = json.Marshal(b)
		}
		if err != nil {
			return nil, err
		}
		out.Blocks = append(out.Blocks, raw)
	}
	return json.Marshal(out)
}
