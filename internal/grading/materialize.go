package grading

import (
	"github.com/notefold/notefold-backend/internal/delta"
	"github.com/notefold/notefold-backend/internal/document"
	"github.com/notefold/notefold-backend/internal/model"
)

// ApplyPermutations walks a built document and puts every choice list into
// the order this submission should see: each list's lines are reordered so
// displayed position i holds the authored option perm[i], and Selected is
// set to the displayed position of the stored canonical answer.
//
// Permutations are looked up in answers, minting new ones through the engine
// where missing. The document is mutated in place; the returned slice holds
// the answers minted during the walk, which the caller persists. Nothing
// here touches storage, so the walk stays unit-testable without a database.
func (e *Engine) ApplyPermutations(doc *document.Document, answers *[]model.Answer) []model.Answer {
	var minted []model.Answer
	e.applyToDocument(doc, answers, &minted)
	return minted
}

func (e *Engine) applyToDocument(doc *document.Document, answers *[]model.Answer, minted *[]model.Answer) {
	for _, block := range doc.Blocks {
		switch b := block.(type) {
		case document.Paragraph:
			for _, node := range b.Line.Nodes {
				if list, ok := node.(*document.List); ok {
					e.applyToList(doc.NoteID, list, answers, minted)
				}
			}
		case *document.Document:
			e.applyToDocument(b, answers, minted)
		}
	}
}

func (e *Engine) applyToList(noteID string, list *document.List, answers *[]model.Answer, minted *[]model.Answer) {
	if list.Kind != delta.ListChoice || len(list.Lines) == 0 {
		return
	}

	answer, isNew := e.EnsurePermutation(answers, noteID, len(list.Lines))
	if isNew {
		*minted = append(*minted, answer)
	}

	perm := answer.Permutation
	displayed := make([]document.Line, len(perm))
	for i, original := range perm {
		displayed[i] = list.Lines[original]
	}
	list.Lines = displayed

	if d, err := ToDisplayedIndex(perm, answer.Answer); err == nil {
		list.Selected = d
	}
}
