package document

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/notefold/notefold-backend/internal/delta"
)

func mustDelta(t *testing.T, raw string) delta.Delta {
	t.Helper()
	d, err := delta.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode delta: %v", err)
	}
	return d
}

func build(t *testing.T, note Note, opts Options) *Document {
	t.Helper()
	doc, err := Build(context.Background(), note, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return doc
}

func TestBuildParagraphWithFormula(t *testing.T) {
	note := Note{ID: "n1", Title: "Basics", Delta: mustDelta(t, `{"ops":[
		{"insert":"Hello "},
		{"insert":{"formula":{"value":"x^2"}}},
		{"insert":"\n"}
	]}`)}

	doc := build(t, note, Options{})

	if len(doc.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(doc.Blocks))
	}
	p, ok := doc.Blocks[0].(Paragraph)
	if !ok {
		t.Fatalf("block 0 = %#v, want Paragraph", doc.Blocks[0])
	}
	want := []Node{Text("Hello "), Formula{Value: "x^2"}}
	if !reflect.DeepEqual(p.Line.Nodes, want) {
		t.Errorf("nodes = %#v, want %#v", p.Line.Nodes, want)
	}
}

func TestBuildHeadingsAndTrailingParagraph(t *testing.T) {
	note := Note{ID: "n1", Delta: mustDelta(t, `{"ops":[
		{"insert":"Title"},
		{"insert":"\n","attributes":{"header":1}},
		{"insert":"Sub"},
		{"insert":"\n","attributes":{"header":2}},
		{"insert":"no trailing newline"}
	]}`)}

	doc := build(t, note, Options{})

	if len(doc.Blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(doc.Blocks))
	}
	attrs := []string{"h1", "h2", ""}
	for i, want := range attrs {
		p := doc.Blocks[i].(Paragraph)
		if p.Attribute != want {
			t.Errorf("block %d attribute = %q, want %q", i, p.Attribute, want)
		}
	}
	last := doc.Blocks[2].(Paragraph)
	if last.Line.Nodes[0] != Text("no trailing newline") {
		t.Errorf("trailing paragraph = %#v", last.Line.Nodes)
	}
}

func TestBuildListGrouping(t *testing.T) {
	note := Note{ID: "n1", Delta: mustDelta(t, `{"ops":[
		{"insert":"red\ngreen"},
		{"insert":"\n","attributes":{"list":"bullet"}},
		{"insert":"one"},
		{"insert":"\n","attributes":{"list":"ordered"}},
		{"insert":"two"},
		{"insert":"\n","attributes":{"list":"ordered"}}
	]}`)}

	doc := build(t, note, Options{})

	if len(doc.Blocks) != 3 {
		t.Fatalf("got %d blocks, want 3: %#v", len(doc.Blocks), doc.Blocks)
	}

	// "red\ngreen": the newline op has no list attribute, so "red" is a
	// plain paragraph and only "green" lands in the bullet list.
	if p := doc.Blocks[0].(Paragraph); p.Line.Nodes[0] != Text("red") {
		t.Errorf("block 0 = %#v", p.Line.Nodes)
	}

	bullet := doc.Blocks[1].(Paragraph).Line.Nodes[0].(*List)
	if bullet.Kind != delta.ListBullet || len(bullet.Lines) != 1 {
		t.Errorf("bullet list = %+v", bullet)
	}

	ordered := doc.Blocks[2].(Paragraph).Line.Nodes[0].(*List)
	if ordered.Kind != delta.ListOrdered || len(ordered.Lines) != 2 {
		t.Fatalf("ordered list = %+v", ordered)
	}
	if ordered.Lines[0].Nodes[0] != Text("one") || ordered.Lines[1].Nodes[0] != Text("two") {
		t.Errorf("ordered lines = %#v", ordered.Lines)
	}
}

func TestBuildChoiceList(t *testing.T) {
	note := Note{ID: "q1", Delta: mustDelta(t, `{"ops":[
		{"insert":"Capital of France?\n"},
		{"insert":"Paris"},
		{"insert":"\n","attributes":{"list":"choice"}},
		{"insert":"Lyon"},
		{"insert":"\n","attributes":{"list":"choice"}},
		{"insert":"Nice"},
		{"insert":"\n","attributes":{"list":"choice"}}
	]}`)}

	doc := build(t, note, Options{})

	choice := doc.Blocks[1].(Paragraph).Line.Nodes[0].(*List)
	if choice.Kind != delta.ListChoice {
		t.Fatalf("kind = %q", choice.Kind)
	}
	if len(choice.Lines) != 3 {
		t.Fatalf("got %d options, want 3", len(choice.Lines))
	}
	if choice.Selected != nil {
		t.Errorf("builder must not select an option, got %v", *choice.Selected)
	}
	// Authored order is canonical: the correct option comes first.
	if choice.Lines[0].Nodes[0] != Text("Paris") {
		t.Errorf("canonical option 0 = %#v", choice.Lines[0].Nodes)
	}
}

func TestBuildCoalescesAdjacentRuns(t *testing.T) {
	note := Note{ID: "n1", Delta: mustDelta(t, `{"ops":[
		{"insert":"foo"},
		{"insert":"bar"},
		{"insert":"one","attributes":{"bold":true}},
		{"insert":"two","attributes":{"bold":true}},
		{"insert":"three","attributes":{"italic":true}},
		{"insert":"\n"}
	]}`)}

	doc := build(t, note, Options{})
	nodes := doc.Blocks[0].(Paragraph).Line.Nodes

	want := []Node{
		Text("foobar"),
		&Span{Formats: []string{"bold"}, Child: Text("onetwo")},
		&Span{Formats: []string{"italic"}, Child: Text("three")},
	}
	if !reflect.DeepEqual(nodes, want) {
		t.Errorf("nodes = %#v, want %#v", nodes, want)
	}
}

func TestBuildDecorationOrderIsStable(t *testing.T) {
	note := Note{ID: "n1", Delta: mustDelta(t, `{"ops":[
		{"insert":{"formula":{"value":"e=mc^2"}},"attributes":{"code":true,"bold":true}},
		{"insert":"\n"}
	]}`)}

	doc := build(t, note, Options{})
	span := doc.Blocks[0].(Paragraph).Line.Nodes[0].(*Span)

	if !reflect.DeepEqual(span.Formats, []string{"bold", "code"}) {
		t.Errorf("formats = %v", span.Formats)
	}
	if span.Child != (Formula{Value: "e=mc^2"}) {
		t.Errorf("child = %#v", span.Child)
	}
}

func TestBuildMalformedEmbedDegradesToErrorSpan(t *testing.T) {
	note := Note{ID: "n1", Delta: mustDelta(t, `{"ops":[
		{"insert":"before "},
		{"insert":{"formula":{"displaystyle":true}}},
		{"insert":" after\n"}
	]}`)}

	doc := build(t, note, Options{})
	nodes := doc.Blocks[0].(Paragraph).Line.Nodes

	if len(nodes) != 3 {
		t.Fatalf("nodes = %#v", nodes)
	}
	span, ok := nodes[1].(*Span)
	if !ok || span.Formats[0] != "error" {
		t.Fatalf("node 1 = %#v, want error span", nodes[1])
	}
	if nodes[2] != Text(" after") {
		t.Errorf("iteration did not continue past the bad embed: %#v", nodes[2])
	}
}

func noteGraph(notes ...Note) Loader {
	byID := make(map[string]Note, len(notes))
	for _, n := range notes {
		byID[n.ID] = n
	}
	return func(_ context.Context, id string) (*Note, error) {
		n, ok := byID[id]
		if !ok {
			return nil, nil
		}
		return &n, nil
	}
}

func TestBuildTransclusion(t *testing.T) {
	inner := Note{ID: "b", Title: "Inner", Delta: mustDelta(t, `{"ops":[{"insert":"from B\n"}]}`)}
	outer := Note{ID: "a", Title: "Outer", Delta: mustDelta(t, `{"ops":[
		{"insert":"intro\n"},
		{"insert":{"note":{"note_id":"b"}}}
	]}`)}

	doc := build(t, outer, Options{Loader: noteGraph(inner)})

	if len(doc.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(doc.Blocks))
	}
	nested, ok := doc.Blocks[1].(*Document)
	if !ok {
		t.Fatalf("block 1 = %#v, want nested document", doc.Blocks[1])
	}
	if nested.NoteID != "b" || nested.Title != "Inner" {
		t.Errorf("nested = %+v", nested)
	}
}

func TestBuildCycleRendersErrorNotRecursion(t *testing.T) {
	a := Note{ID: "a", Delta: mustDelta(t, `{"ops":[{"insert":{"note":{"note_id":"b"}}}]}`)}
	b := Note{ID: "b", Delta: mustDelta(t, `{"ops":[{"insert":{"note":{"note_id":"a"}}},{"insert":"\n"}]}`)}

	doc := build(t, a, Options{Loader: noteGraph(a, b)})

	nested := doc.Blocks[0].(*Document)
	if nested.NoteID != "b" {
		t.Fatalf("nested = %+v", nested)
	}
	span := nested.Blocks[0].(Paragraph).Line.Nodes[0].(*Span)
	if span.Formats[0] != "error" || span.Child != Text("circular reference a") {
		t.Errorf("cycle marker = %#v", span)
	}
}

func TestBuildSelfReference(t *testing.T) {
	a := Note{ID: "a", Delta: mustDelta(t, `{"ops":[{"insert":{"note":{"note_id":"a"}}},{"insert":"\n"}]}`)}

	doc := build(t, a, Options{Loader: noteGraph(a)})

	span := doc.Blocks[0].(Paragraph).Line.Nodes[0].(*Span)
	if span.Child != Text("circular reference a") {
		t.Errorf("got %#v", span.Child)
	}
}

func TestBuildDepthCutoff(t *testing.T) {
	// n0 -> n1 -> n2 -> n3: acyclic, but deeper than the cutoff.
	chain := []Note{
		{ID: "n0", Delta: mustDelta(t, `{"ops":[{"insert":{"note":{"note_id":"n1"}}}]}`)},
		{ID: "n1", Delta: mustDelta(t, `{"ops":[{"insert":{"note":{"note_id":"n2"}}}]}`)},
		{ID: "n2", Delta: mustDelta(t, `{"ops":[{"insert":{"note":{"note_id":"n3"}}},{"insert":"\n"}]}`)},
		{ID: "n3", Delta: mustDelta(t, `{"ops":[{"insert":"too deep\n"}]}`)},
	}

	doc := build(t, chain[0], Options{Loader: noteGraph(chain...), MaxDepth: 3})

	n1 := doc.Blocks[0].(*Document)
	n2 := n1.Blocks[0].(*Document)
	span := n2.Blocks[0].(Paragraph).Line.Nodes[0].(*Span)
	if span.Formats[0] != "error" {
		t.Fatalf("expected depth marker, got %#v", n2.Blocks[0])
	}
}

func TestBuildMissingNoteIsSkipped(t *testing.T) {
	a := Note{ID: "a", Delta: mustDelta(t, `{"ops":[
		{"insert":"kept\n"},
		{"insert":{"note":{"note_id":"gone"}}}
	]}`)}

	doc := build(t, a, Options{Loader: noteGraph()})

	if len(doc.Blocks) != 1 {
		t.Fatalf("blocks = %#v", doc.Blocks)
	}
}

func TestBuildLoaderErrorAborts(t *testing.T) {
	boom := errors.New("connection reset")
	loader := func(context.Context, string) (*Note, error) { return nil, boom }
	a := Note{ID: "a", Delta: mustDelta(t, `{"ops":[{"insert":{"note":{"note_id":"b"}}}]}`)}

	_, err := Build(context.Background(), a, Options{Loader: loader})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped loader error", err)
	}
}

func TestBuildWithoutLoaderEmitsPlaceholder(t *testing.T) {
	a := Note{ID: "a", Delta: mustDelta(t, `{"ops":[{"insert":{"note":{"note_id":"b"}}}]}`)}

	doc := build(t, a, Options{})

	ref, ok := doc.Blocks[0].(NoteRefPlaceholder)
	if !ok || ref.NoteID != "b" {
		t.Fatalf("block = %#v", doc.Blocks[0])
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	inner := Note{ID: "b", Delta: mustDelta(t, `{"ops":[{"insert":"stable\n"}]}`)}
	a := Note{ID: "a", Delta: mustDelta(t, `{"ops":[
		{"insert":"x","attributes":{"bold":true}},
		{"insert":{"note":{"note_id":"b"}}},
		{"insert":"tail"}
	]}`)}

	first := build(t, a, Options{Loader: noteGraph(inner)})
	second := build(t, a, Options{Loader: noteGraph(inner)})

	if !reflect.DeepEqual(first, second) {
		t.Errorf("two builds of the same snapshot differ")
	}
}
