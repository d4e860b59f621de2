// Package scriptloader injects external scripts into a document at most once.
package scriptloader

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Document is the page scripts are injected into
type Document interface {
	// HasScript reports whether a script with exactly this src is present
	HasScript(src string) bool
	// InjectScript appends a script with src and returns once it has loaded
	InjectScript(ctx context.Context, src string) error
}

// Loader loads scripts into a Document. Concurrent loads of the same src
// share one injection.
type Loader struct {
	doc   Document
	group singleflight.Group
}

// New creates a loader for doc
func New(doc Document) *Loader {
	return &Loader{doc: doc}
}

// Load makes sure src is present in the document. It returns immediately when
// the script already exists. Failures are not retried.
//
// A shared injection is not cancelled with the caller that started it; each
// caller stops waiting when its own ctx is done.
func (l *Loader) Load(ctx context.Context, src string) error {
	if l.doc.HasScript(src) {
		return nil
	}

	injectCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(src, func() (any, error) {
		if l.doc.HasScript(src) {
			return nil, nil
		}
		if err := l.doc.InjectScript(injectCtx, src); err != nil {
			return nil, fmt.Errorf("failed to load script: %s: %w", src, err)
		}
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}
