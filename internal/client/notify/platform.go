package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// StaticPermission answers every permission request with its own value.
type StaticPermission bool

func (p StaticPermission) Request(context.Context) (bool, error) {
	return bool(p), nil
}

// WriterDisplayer prints local notifications to a writer, one per line.
type WriterDisplayer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterDisplayer(w io.Writer) *WriterDisplayer {
	return &WriterDisplayer{w: w}
}

func (d *WriterDisplayer) Show(_ context.Context, title, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := fmt.Fprintf(d.w, "[notification] %s: %s\n", title, body)
	return err
}
