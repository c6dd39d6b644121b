// Package delta models Quill-style rich-text operation logs. A delta is an
// ordered list of insert operations; order is the concatenation order of the
// note's content. Inserts are decoded into an exhaustive tagged union at the
// JSON boundary so downstream code never shape-sniffs raw maps.
package delta

import (
	"encoding/json"
	"fmt"
)

// List kinds carried by line attributes.
const (
	ListBullet  = "bullet"
	ListOrdered = "ordered"
	ListChoice  = "choice"
)

// Delta is an ordered log of insert operations.
type Delta struct {
	Ops []Op `json:"ops"`
}

// Op is a single insert operation with optional formatting attributes.
type Op struct {
	Insert     Insert      `json:"insert"`
	Attributes *Attributes `json:"attributes,omitempty"`
}

// Attributes carries the formatting state of an op. Inline marks apply to
// the inserted content itself; Header and List are line attributes, read
// from the op that carries the terminating newline.
type Attributes struct {
	Bold      bool   `json:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty"`
	Underline bool   `json:"underline,omitempty"`
	Strike    bool   `json:"strike,omitempty"`
	Code      bool   `json:"code,omitempty"`
	Header    int    `json:"header,omitempty"`
	List      string `json:"list,omitempty"`
}

// Insert is the payload of an op: plain text, a formula embed, a note
// reference embed, or an Invalid marker for structurally malformed embeds.
type Insert interface {
	isInsert()
}

// Text is a plain string insert. It may contain newlines; the document
// builder splits and flushes lines on them.
type Text string

// Formula is an embedded math formula.
type Formula struct {
	Value        string `json:"value"`
	DisplayStyle bool   `json:"displaystyle,omitempty"`
}

// NoteRef embeds another note by id (transclusion).
type NoteRef struct {
	NoteID string `json:"note_id"`
}

// Invalid records a structurally malformed embed. The document builder
// renders it as a visible inline error span; it never aborts a build.
type Invalid struct {
	Reason string `json:"reason"`
}

func (Text) isInsert()    {}
func (Formula) isInsert() {}
func (NoteRef) isInsert() {}
func (Invalid) isInsert() {}

// UnmarshalJSON decodes the insert payload into its tagged-union form.
func (o *Op) UnmarshalJSON(data []byte) error {
	var raw struct {
		Insert     json.RawMessage `json:"insert"`
		Attributes *Attributes     `json:"attributes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode op: %w", err)
	}
	o.Attributes = raw.Attributes
	o.Insert = decodeInsert(raw.Insert)
	return nil
}

// MarshalJSON re-encodes the op in its wire form.
func (o Op) MarshalJSON() ([]byte, error) {
	out := struct {
		Insert     any         `json:"insert"`
		Attributes *Attributes `json:"attributes,omitempty"`
	}{Attributes: o.Attributes}

	switch ins := o.Insert.(type) {
	case Text:
		out.Insert = string(ins)
	case Formula:
		out.Insert = map[string]Formula{"formula": ins}
	case NoteRef:
		out.Insert = map[string]NoteRef{"note": ins}
	default:
		out.Insert = ""
	}
	return json.Marshal(out)
}

// Decode parses a raw delta document. A nil or empty payload yields an
// empty delta rather than an error.
func Decode(raw []byte) (Delta, error) {
	var d Delta
	if len(raw) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return Delta{}, fmt.Errorf("decode delta: %w", err)
	}
	return d, nil
}

func decodeInsert(raw json.RawMessage) Insert {
	if len(raw) == 0 || string(raw) == "null" {
		return Invalid{Reason: "missing insert"}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return Text(s)
	}

	var embed struct {
		Formula json.RawMessage `json:"formula"`
		Note    json.RawMessage `json:"note"`
	}
	if err := json.Unmarshal(raw, &embed); err != nil {
		return Invalid{Reason: "unrecognized insert payload"}
	}

	switch {
	case embed.Formula != nil:
		return decodeFormula(embed.Formula)
	case embed.Note != nil:
		return decodeNoteRef(embed.Note)
	default:
		return Invalid{Reason: "unknown embed type"}
	}
}

func decodeFormula(raw json.RawMessage) Insert {
	var f struct {
		Value        json.RawMessage `json:"value"`
		DisplayStyle bool            `json:"displaystyle"`
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return Invalid{Reason: "malformed formula embed"}
	}
	var value string
	if err := json.Unmarshal(f.Value, &value); err != nil {
		return Invalid{Reason: "formula embed requires a string value"}
	}
	return Formula{Value: value, DisplayStyle: f.DisplayStyle}
}

func decodeNoteRef(raw json.RawMessage) Insert {
	var n struct {
		NoteID json.RawMessage `json:"note_id"`
	}
	if err := json.Unmarshal(raw, &n); err != nil {
		return Invalid{Reason: "malformed note embed"}
	}
	var id string
	if err := json.Unmarshal(n.NoteID, &id); err != nil || id == "" {
		return Invalid{Reason: "note embed requires a string note_id"}
	}
	return NoteRef{NoteID: id}
}
