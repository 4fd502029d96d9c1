package loader

import (
	"errors"
	"iter"
	"sync/atomic"

	"github.com/arthur-debert/nanomap/types"
)

// ErrCursorConsumed is yielded when a cursor is iterated a second time
var ErrCursorConsumed = errors.New("loader: cursor already consumed")

// Cursor is a lazy, single-pass, finite sequence of documents
type Cursor struct {
	seq      iter.Seq2[types.Document, error]
	consumed atomic.Bool
}

// NewCursor wraps seq; a nil seq is an empty cursor
func NewCursor(seq iter.Seq2[types.Document, error]) *Cursor {
	return &Cursor{seq: seq}
}

// Empty returns a cursor with no documents
func Empty() *Cursor {
	return NewCursor(nil)
}

// Of returns a cursor over docs
func Of(docs ...types.Document) *Cursor {
	return NewCursor(func(yield func(types.Document, error) bool) {
		for _, doc := range docs {
			if !yield(doc, nil) {
				return
			}
		}
	})
}

// All yields the documents. Only the first call yields them; later calls
// yield ErrCursorConsumed once.
func (c *Cursor) All() iter.Seq2[types.Document, error] {
	return func(yield func(types.Document, error) bool) {
		if c.consumed.Swap(true) {
			yield(nil, ErrCursorConsumed)
			return
		}
		if c.seq == nil {
			return
		}
		for doc, err := range c.seq {
			if !yield(doc, err) || err != nil {
				return
			}
		}
	}
}

// Collect drains the cursor into a slice, stopping at the first error
func (c *Cursor) Collect() ([]types.Document, error) {
	var docs []types.Document
	for doc, err := range c.All() {
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
