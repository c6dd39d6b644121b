package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/notefold/notefold-backend/internal/delta"
)

// DefaultMaxDepth bounds transclusion chains. Cycles are caught by the
// ancestor chain; the depth cutoff protects against long acyclic chains.
const DefaultMaxDepth = 8

// Note is the builder's view of a note: identity plus decoded content.
type Note struct {
	ID      string
	Title   string
	Variant string
	Delta   delta.Delta
}

// Loader resolves a referenced note by id. A missing note must be reported
// as (nil, nil); errors are reserved for infrastructure failures and abort
// the build.
type Loader func(ctx context.Context, noteID string) (*Note, error)

// Options controls transclusion resolution. With a nil Loader, note
// references become NoteRefPlaceholder blocks for the caller to resolve.
// Ancestors seeds the cycle-detection chain (root first); MaxDepth of 0
// means DefaultMaxDepth.
type Options struct {
	Loader    Loader
	Ancestors []string
	MaxDepth  int
}

// Build transforms a note's delta into a Document. Malformed content never
// fails a build; it degrades to inline error spans. The only returned errors
// are loader failures.
func Build(ctx context.Context, note Note, opts Options) (*Document, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	b := &builder{
		opts:  opts,
		chain: append(append([]string{}, opts.Ancestors...), note.ID),
		doc: &Document{
			NoteID:  note.ID,
			Title:   note.Title,
			Variant: note.Variant,
		},
	}

	for _, op := range note.Delta.Ops {
		if err := b.consume(ctx, op); err != nil {
			return nil, err
		}
	}

	// An op log without a trailing newline still yields a final paragraph.
	if len(b.line.Nodes) > 0 {
		b.flushParagraph(nil)
	}

	return b.doc, nil
}

type builder struct {
	opts  Options
	chain []string
	doc   *Document
	line  Line
}

func (b *builder) consume(ctx context.Context, op delta.Op) error {
	switch ins := op.Insert.(type) {
	case delta.Text:
		b.consumeText(string(ins), op.Attributes)
	case delta.Formula:
		b.appendNode(decorate(Formula{Value: ins.Value, DisplayStyle: ins.DisplayStyle}, op.Attributes))
	case delta.NoteRef:
		return b.consumeNoteRef(ctx, ins.NoteID)
	case delta.Invalid:
		b.appendNode(ErrorSpan(ins.Reason))
	}
	return nil
}

func (b *builder) consumeText(s string, attrs *delta.Attributes) {
	fragments := strings.Split(s, "\n")
	for i, frag := range fragments {
		if frag != "" {
			b.appendNode(decorate(Text(frag), attrs))
		}
		// Every fragment but the last was terminated by a newline; the
		// newline's op carries the line attributes.
		if i < len(fragments)-1 {
			b.flushLine(attrs)
		}
	}
}

func (b *builder) consumeNoteRef(ctx context.Context, noteID string) error {
	for _, ancestor := range b.chain {
		if ancestor == noteID {
			b.appendNode(ErrorSpan(fmt.Sprintf("circular reference %s", noteID)))
			return nil
		}
	}

	if b.opts.Loader == nil {
		b.doc.Blocks = append(b.doc.Blocks, NoteRefPlaceholder{NoteID: noteID})
		return nil
	}

	if len(b.chain) >= b.opts.MaxDepth {
		b.appendNode(ErrorSpan(fmt.Sprintf("reference depth exceeded at %s", noteID)))
		return nil
	}

	child, err := b.opts.Loader(ctx, noteID)
	if err != nil {
		return fmt.Errorf("load note %s: %w", noteID, err)
	}
	if child == nil {
		// Deleted or inaccessible note: nothing to render.
		return nil
	}

	nested, err := Build(ctx, *child, Options{
		Loader:    b.opts.Loader,
		Ancestors: b.chain,
		MaxDepth:  b.opts.MaxDepth,
	})
	if err != nil {
		return err
	}
	b.doc.Blocks = append(b.doc.Blocks, nested)
	return nil
}

// flushLine closes the buffered line: into the current list when the newline
// carries a list attribute, otherwise as a paragraph.
func (b *builder) flushLine(attrs *delta.Attributes) {
	if attrs != nil && attrs.List != "" {
		b.flushListLine(attrs.List)
		return
	}
	b.flushParagraph(attrs)
}

func (b *builder) flushParagraph(attrs *delta.Attributes) {
	attribute := ""
	if attrs != nil {
		switch attrs.Header {
		case 1:
			attribute = "h1"
		case 2:
			attribute = "h2"
		}
	}
	b.doc.Blocks = append(b.doc.Blocks, Paragraph{Attribute: attribute, Line: b.line})
	b.line = Line{}
}

func (b *builder) flushListLine(kind string) {
	list := b.trailingList(kind)
	if list == nil {
		list = &List{Kind: kind}
		b.doc.Blocks = append(b.doc.Blocks, Paragraph{Line: Line{Nodes: []Node{list}}})
	}
	list.Lines = append(list.Lines, b.line)
	b.line = Line{}
}

// trailingList returns the list to extend: the previous sibling must be a
// paragraph holding a single list node of the same kind.
func (b *builder) trailingList(kind string) *List {
	if len(b.doc.Blocks) == 0 {
		return nil
	}
	p, ok := b.doc.Blocks[len(b.doc.Blocks)-1].(Paragraph)
	if !ok || len(p.Line.Nodes) != 1 {
		return nil
	}
	list, ok := p.Line.Nodes[0].(*List)
	if !ok || list.Kind != kind {
		return nil
	}
	return list
}

// appendNode adds an inline node to the buffered line, coalescing adjacent
// plain strings and adjacent same-format text spans in encounter order.
func (b *builder) appendNode(node Node) {
	nodes := b.line.Nodes
	if len(nodes) > 0 {
		last := nodes[len(nodes)-1]

		if t, ok := node.(Text); ok {
			if lt, ok := last.(Text); ok {
				b.line.Nodes[len(nodes)-1] = lt + t
				return
			}
		}
		if s, ok := node.(*Span); ok {
			if ls, ok := last.(*Span); ok && mergeSpans(ls, s) {
				return
			}
		}
	}
	b.line.Nodes = append(b.line.Nodes, node)
}

// mergeSpans folds src into dst when both wrap plain text under identical
// format chains.
func mergeSpans(dst, src *Span) bool {
	if len(dst.Formats) != len(src.Formats) {
		return false
	}
	for i := range dst.Formats {
		if dst.Formats[i] != src.Formats[i] {
			return false
		}
	}
	dt, ok := dst.Child.(Text)
	if !ok {
		return false
	}
	st, ok := src.Child.(Text)
	if !ok {
		return false
	}
	dst.Child = dt + st
	return true
}

// decorate wraps a leaf in the active inline formats, outermost first. The
// wrap order is fixed so equal attribute sets always produce equal spans.
func decorate(node Node, attrs *delta.Attributes) Node {
	if attrs == nil {
		return node
	}
	var formats []string
	if attrs.Bold {
		formats = append(formats, "bold")
	}
	if attrs.Italic {
		formats = append(formats, "italic")
	}
	if attrs.Underline {
		formats = append(formats, "underline")
	}
	if attrs.Strike {
		formats = append(formats, "strike")
	}
	if attrs.Code {
		formats = append(formats, "code")
	}
	if len(formats) == 0 {
		return node
	}
	return &Span{Formats: formats, Child: node}
}
