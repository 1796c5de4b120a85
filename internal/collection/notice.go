package collection

import (
	"context"
	"sync"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is a message shown to the user after an action.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Inbox collects notices until a view drains them.
type Inbox struct {
	mu      sync.Mutex
	notices []Notice
}

func (i *Inbox) Notify(_ context.Context, n Notice) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.notices = append(i.notices, n)
}

// Drain returns the collected notices and forgets them.
func (i *Inbox) Drain() []Notice {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.notices
	i.notices = nil
	if out == nil {
		out = make([]Notice, 0)
	}
	return out
}
