package source

import (
	"errors"
	"iter"
)

// Visitor is implemented by sources that can enumerate their payloads.
type Visitor interface {
	// Visit calls the visitor for every payload. Order is implementation-defined.
	Visit(visitor func(uri string, data []byte) error) error
}

var errVisitCancelled = errors.New("visit cancelled")

// All returns an iterator over the URIs and payloads of a source.
// Iteration panics on read errors; use Visit to handle them.
func All(v Visitor) iter.Seq2[string, []byte] {
	return func(yield func(string, []byte) bool) {
		err := v.Visit(func(uri string, data []byte) error {
			if !yield(uri, data) {
				return errVisitCancelled
			}
			return nil
		})
		if err != nil && !errors.Is(err, errVisitCancelled) {
			panic(err)
		}
	}
}
