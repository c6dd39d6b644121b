package grading

import (
	"context"
	"reflect"
	"testing"

	"github.com/notefold/notefold-backend/internal/delta"
	"github.com/notefold/notefold-backend/internal/document"
	"github.com/notefold/notefold-backend/internal/model"
)

func choiceDocument(t *testing.T, noteID string, options ...string) *document.Document {
	t.Helper()
	ops := `{"insert":"Pick one\n"}`
	for _, opt := range options {
		ops += `,{"insert":"` + opt + `"},{"insert":"\n","attributes":{"list":"choice"}}`
	}
	d, err := delta.Decode([]byte(`{"ops":[` + ops + `]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	doc, err := document.Build(context.Background(), document.Note{ID: noteID, Delta: d}, document.Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return doc
}

func findChoiceList(t *testing.T, doc *document.Document) *document.List {
	t.Helper()
	for _, block := range doc.Blocks {
		p, ok := block.(document.Paragraph)
		if !ok {
			continue
		}
		for _, node := range p.Line.Nodes {
			if list, ok := node.(*document.List); ok && list.Kind == delta.ListChoice {
				return list
			}
		}
	}
	t.Fatal("no choice list in document")
	return nil
}

func TestApplyPermutationsMintsAndReorders(t *testing.T) {
	e := testEngine()
	doc := choiceDocument(t, "q1", "right", "wrong A", "wrong B")
	var answers []model.Answer

	minted := e.ApplyPermutations(doc, &answers)

	if len(minted) != 1 || minted[0].NoteID != "q1" {
		t.Fatalf("minted = %+v", minted)
	}
	perm := minted[0].Permutation

	list := findChoiceList(t, doc)
	canonical := []string{"right", "wrong A", "wrong B"}
	for displayed, original := range perm {
		got := list.Lines[displayed].Nodes[0].(document.Text)
		if string(got) != canonical[original] {
			t.Errorf("displayed %d = %q, want authored option %d (%q)", displayed, got, original, canonical[original])
		}
	}
	if list.Selected != nil {
		t.Errorf("unanswered question has selected = %v", *list.Selected)
	}
}

func TestApplyPermutationsIsStableAcrossRenders(t *testing.T) {
	e := testEngine()
	var answers []model.Answer

	first := choiceDocument(t, "q1", "a", "b", "c", "d")
	e.ApplyPermutations(first, &answers)

	second := choiceDocument(t, "q1", "a", "b", "c", "d")
	minted := e.ApplyPermutations(second, &answers)

	if len(minted) != 0 {
		t.Fatalf("second render minted %+v", minted)
	}
	if !reflect.DeepEqual(findChoiceList(t, first), findChoiceList(t, second)) {
		t.Errorf("same submission saw two different orders")
	}
}

func TestApplyPermutationsProjectsStoredAnswer(t *testing.T) {
	e := testEngine()
	doc := choiceDocument(t, "q1", "x", "y", "z")
	canonical := 0
	answers := []model.Answer{{NoteID: "q1", Permutation: []int{2, 0, 1}, Answer: &canonical}}

	e.ApplyPermutations(doc, &answers)

	list := findChoiceList(t, doc)
	// Canonical option 0 is shown at displayed position 1 under [2,0,1].
	if list.Selected == nil || *list.Selected != 1 {
		t.Errorf("selected = %v, want 1", list.Selected)
	}
	if list.Lines[1].Nodes[0] != document.Text("x") {
		t.Errorf("displayed position 1 = %#v, want authored option 0", list.Lines[1].Nodes[0])
	}
}

func TestApplyPermutationsWalksNestedDocuments(t *testing.T) {
	e := testEngine()
	inner := choiceDocument(t, "q-inner", "one", "two")
	outer := &document.Document{NoteID: "root", Blocks: []document.Block{
		document.Paragraph{Line: document.Line{Nodes: []document.Node{document.Text("intro")}}},
		inner,
	}}
	var answers []model.Answer

	minted := e.ApplyPermutations(outer, &answers)

	if len(minted) != 1 || minted[0].NoteID != "q-inner" {
		t.Fatalf("minted = %+v", minted)
	}
	if len(minted[0].Permutation) != 2 {
		t.Errorf("permutation = %v", minted[0].Permutation)
	}
}

func TestApplyPermutationsIgnoresNonChoiceLists(t *testing.T) {
	e := testEngine()
	d, err := delta.Decode([]byte(`{"ops":[
		{"insert":"a"},
		{"insert":"\n","attributes":{"list":"bullet"}},
		{"insert":"b"},
		{"insert":"\n","attributes":{"list":"ordered"}}
	]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	doc, err := document.Build(context.Background(), document.Note{ID: "n", Delta: d}, document.Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var answers []model.Answer

	if minted := e.ApplyPermutations(doc, &answers); len(minted) != 0 {
		t.Errorf("minted = %+v for non-choice lists", minted)
	}
}
