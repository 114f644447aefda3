package music

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/wendellddr/Bot-Spotify-sub000/logger"
)

// guild serializes every command and event for one guild. Steps run one at a
// time on a goroutine that exists only while work is pending.
type guild struct {
	id string

	mu      sync.Mutex
	pending []task
	running bool
	// retired is set once the guild is dropped from Manager.guilds; a retired
	// guild accepts no more work.
	retired bool

	// queue is owned by the running step; nil means the guild is Empty.
	queue    *guildQueue
	snapshot atomic.Pointer[Snapshot]
}

// task is one executor step. done, if set, runs after the step's snapshot
// has been published.
type task struct {
	run  func()
	done func()
}

// guild returns the executor for guildID, creating it on first use.
func (m *Manager) guild(guildID string) *guild {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guilds[guildID]
	if !ok {
		g = &guild{id: guildID}
		m.guilds[guildID] = g
	}
	return g
}

func (m *Manager) lookup(guildID string) *guild {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guilds[guildID]
}

// post schedules step on g without waiting for it. It reports false when g
// was already retired; its queue is gone, so the step has nothing to act on.
func (m *Manager) post(g *guild, step func()) bool {
	return m.schedule(g, task{run: step})
}

func (m *Manager) schedule(g *guild, t task) bool {
	g.mu.Lock()
	if g.retired {
		g.mu.Unlock()
		return false
	}
	g.pending = append(g.pending, t)
	if g.running {
		g.mu.Unlock()
		return true
	}
	g.running = true
	g.mu.Unlock()

	go m.drain(g)
	return true
}

func (m *Manager) drain(g *guild) {
	for {
		g.mu.Lock()
		if len(g.pending) == 0 {
			g.running = false
			idle := g.queue == nil
			g.mu.Unlock()
			if idle {
				m.retire(g)
			}
			return
		}
		t := g.pending[0]
		g.pending[0] = task{}
		g.pending = g.pending[1:]
		g.mu.Unlock()

		m.runStep(g, t)
	}
}

// retire drops an Empty guild with no pending work so unknown guild IDs do
// not accumulate executors.
func (m *Manager) retire(g *guild) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running || len(g.pending) > 0 || g.queue != nil || m.guilds[g.id] != g {
		return
	}
	g.retired = true
	delete(m.guilds, g.id)
}

func (m *Manager) runStep(g *guild, t task) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("music step panicked", logger.Guild(g.id), logger.Any("panic", r))
				if q := g.queue; q != nil && q.current == nil {
					q.playing = false
				}
			}
		}()
		t.run()
	}()

	m.publish(g)
	if t.done != nil {
		t.done()
	}
}

// publish stores a fresh snapshot and notifies observers.
func (m *Manager) publish(g *guild) {
	var snap *Snapshot
	if g.queue != nil {
		snap = g.queue.snapshot()
	}
	g.snapshot.Store(snap)

	m.observersMu.RLock()
	observers := m.observers
	m.observersMu.RUnlock()
	for _, o := range observers {
		o.QueueChanged(g.id, snap)
	}
}

// call runs fn on the guild's executor and waits for its result. fn keeps
// running to completion even if ctx ends first; only the wait is abandoned.
func call[T any](ctx context.Context, m *Manager, guildID string, fn func(ctx context.Context, g *guild) (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}

	stepCtx := context.WithoutCancel(ctx)
	done := make(chan result, 1)

	res := result{err: errors.New("music: internal error")}
	for {
		g := m.guild(guildID)
		scheduled := m.schedule(g, task{
			run: func() {
				res.val, res.err = fn(stepCtx, g)
			},
			done: func() {
				done <- res
			},
		})
		if scheduled {
			break
		}
	}

	select {
	case res := <-done:
		return res.val, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// exec is call for operations without a result value.
func exec(ctx context.Context, m *Manager, guildID string, fn func(ctx context.Context, g *guild) error) error {
	_, err := call(ctx, m, guildID, func(ctx context.Context, g *guild) (struct{}, error) {
		return struct{}{}, fn(ctx, g)
	})
	return err
}
