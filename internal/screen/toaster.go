package screen

import (
	"fmt"
	"io"
	"sync"
	"time"
)

type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

type Toast struct {
	Kind    ToastKind
	Message string
	At      time.Time
}

// Toaster prints notifications to w and keeps the most recent ones.
// It satisfies repository.Notifier.
type Toaster struct {
	mu      sync.Mutex
	w       io.Writer
	history []Toast
	limit   int
	now     func() time.Time
}

func NewToaster(w io.Writer) *Toaster {
	return &Toaster{w: w, limit: 20, now: time.Now}
}

func (t *Toaster) Success(msg string) { t.push(ToastSuccess, msg) }
func (t *Toaster) Error(msg string)   { t.push(ToastError, msg) }

func (t *Toaster) push(kind ToastKind, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = append(t.history, Toast{Kind: kind, Message: msg, At: t.now()})
	if len(t.history) > t.limit {
		t.history = t.history[len(t.history)-t.limit:]
	}
	if t.w == nil {
		return
	}
	mark := "✓"
	if kind == ToastError {
		mark = "✗"
	}
	fmt.Fprintf(t.w, "%s %s\n", mark, msg)
}

// History returns the retained toasts, oldest first.
func (t *Toaster) History() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Toast(nil), t.history...)
}
