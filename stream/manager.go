package stream

import (
	"context"
	"sync"
	"time"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/telemetry"
)

// Transformer mutates or filters an event before it reaches the Bus.
// Filter, when non-nil, is evaluated first; a false result drops the event
// without running Apply.
type Transformer struct {
	Name   string
	Filter func(event apitypes.Event) bool
	Apply  func(event apitypes.Event) (apitypes.Event, error)
}

// Options configures a Manager. BufferSize and FlushInterval default to
// 1 and 0 (publish immediately, no buffering) when unset.
type Options struct {
	Bus          *Bus
	BufferSize   int
	FlushInterval time.Duration
	Logger       telemetry.Logger
}

// Manager wraps a Bus with an ordered transformer chain and optional
// per-thread buffering. Emit applies every transformer in registration
// order; a transformer's error never aborts the emit (per spec.md §7, a
// streaming transformer failure must not abort the emitter) — it is
// logged and the event is forwarded unchanged.
type Manager struct {
	bus    *Bus
	logger telemetry.Logger

	bufferSize    int
	flushInterval time.Duration

	mu           sync.Mutex
	transformers []*Transformer
	buffers      map[string]*threadBuffer
}

type threadBuffer struct {
	mu     sync.Mutex
	events []apitypes.Event
	timer  *time.Timer
}

// New constructs a Manager. opts.Bus is required.
func New(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Manager{
		bus:           opts.Bus,
		logger:        logger,
		bufferSize:    bufferSize,
		flushInterval: opts.FlushInterval,
		buffers:       make(map[string]*threadBuffer),
	}
}

// AddTransformer appends t to the chain. Transformers run in the order
// they were added.
func (m *Manager) AddTransformer(t Transformer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := t
	m.transformers = append(m.transformers, &cp)
}

// RemoveTransformer removes the transformer registered under name, if any.
func (m *Manager) RemoveTransformer(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.transformers {
		if t.Name == name {
			m.transformers = append(m.transformers[:i:i], m.transformers[i+1:]...)
			return
		}
	}
}

// Emit runs event through the transformer chain, then either publishes it
// immediately (bufferSize <= 1) or enqueues it onto its thread's buffer.
// Within a single ThreadID, events reach the Bus in emission order;
// ordering across ThreadIDs is not guaranteed.
func (m *Manager) Emit(ctx context.Context, event apitypes.Event) error {
	m.mu.Lock()
	transformers := make([]*Transformer, len(m.transformers))
	copy(transformers, m.transformers)
	bufferSize := m.bufferSize
	m.mu.Unlock()

	out := event
	for _, t := range transformers {
		if t.Filter != nil && !t.Filter(out) {
			return nil
		}
		if t.Apply == nil {
			continue
		}
		transformed, err := t.Apply(out)
		if err != nil {
			m.logger.Warn(ctx, "stream transformer failed, forwarding unchanged", "transformer", t.Name, "error", err)
			continue
		}
		out = transformed
	}

	if bufferSize <= 1 {
		return m.bus.Publish(ctx, out)
	}
	return m.enqueue(ctx, out, bufferSize)
}

func (m *Manager) enqueue(ctx context.Context, event apitypes.Event, bufferSize int) error {
	buf := m.bufferFor(event.ThreadID)

	buf.mu.Lock()
	buf.events = append(buf.events, event)
	first := len(buf.events) == 1
	full := len(buf.events) >= bufferSize
	if first && m.flushInterval > 0 && !full {
		buf.timer = time.AfterFunc(m.flushInterval, func() {
			_ = m.flush(ctx, event.ThreadID)
		})
	}
	buf.mu.Unlock()

	if full {
		return m.flush(ctx, event.ThreadID)
	}
	return nil
}

func (m *Manager) bufferFor(threadID string) *threadBuffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.buffers[threadID]
	if !ok {
		buf = &threadBuffer{}
		m.buffers[threadID] = buf
	}
	return buf
}

// Flush publishes every event currently queued for threadID as a batch,
// clearing the buffer and its flush timer. Events within the batch publish
// in emission order.
func (m *Manager) Flush(ctx context.Context, threadID string) error {
	return m.flush(ctx, threadID)
}

func (m *Manager) flush(ctx context.Context, threadID string) error {
	buf := m.bufferFor(threadID)

	buf.mu.Lock()
	events := buf.events
	buf.events = nil
	if buf.timer != nil {
		buf.timer.Stop()
		buf.timer = nil
	}
	buf.mu.Unlock()

	for _, e := range events {
		if err := m.bus.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
