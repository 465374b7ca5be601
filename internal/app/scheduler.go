package app

import (
	"context"
	"sync"

	"github.com/waclient/internal/view"
)

// Scheduler coalesces invalidations: any number of Invalidate calls between
// two renders produce one render of the latest state.
type Scheduler struct {
	pending chan struct{}
	render  func()
}

func NewScheduler(render func()) *Scheduler {
	return &Scheduler{pending: make(chan struct{}, 1), render: render}
}

// Invalidate requests a render. It never blocks.
func (s *Scheduler) Invalidate() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

// Run renders on request until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.pending:
			s.render()
		}
	}
}

// Listeners holds the global listeners registered by the current tree.
// Names are unique: registering again replaces. Listeners not registered
// again by the next render are dropped with the tree that owned them.
type Listeners struct {
	mu   sync.Mutex
	fns  map[string]func(view.Event)
	seen map[string]bool
}

func NewListeners() *Listeners {
	return &Listeners{fns: make(map[string]func(view.Event))}
}

func (l *Listeners) begin() {
	l.mu.Lock()
	l.seen = make(map[string]bool)
	l.mu.Unlock()
}

func (l *Listeners) Register(name string, fn func(view.Event)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fns[name] = fn
	if l.seen != nil {
		l.seen[name] = true
	}
}

func (l *Listeners) end() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name := range l.fns {
		if !l.seen[name] {
			delete(l.fns, name)
		}
	}
	l.seen = nil
}

func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}

// Dispatch calls every listener with ev outside the lock.
func (l *Listeners) Dispatch(ev view.Event) {
	l.mu.Lock()
	fns := make([]func(view.Event), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
