package phase

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"goa.design/agentkernel/engine"
)

// DeterministicRunID derives a stable run identifier from a blueprint:
// "prp-deterministic-" followed by the lowercase hex FNV-1a hash of the
// blueprint's canonical JSON encoding. This is explicitly not a
// cryptographic signature — it only needs to be stable and collision-rare
// across everyday inputs, not tamper-evident.
func DeterministicRunID(blueprint Blueprint) string {
	return "prp-deterministic-" + stableHash(blueprint)
}

func stableHash(blueprint Blueprint) string {
	canonical := canonicalize(blueprint)
	h := fnv.New64a()
	_, _ = h.Write(canonical)
	return formatUint(h.Sum64())
}

// canonicalize produces a byte-stable JSON encoding of blueprint: map keys
// sorted, so two blueprints with identical content hash identically
// regardless of Go map iteration order.
func canonicalize(blueprint Blueprint) []byte {
	ordered := struct {
		ID          string `json:"id"`
		Description string `json:"description"`
		Metadata    []kv   `json:"metadata"`
	}{
		ID:          blueprint.ID,
		Description: blueprint.Description,
	}
	keys := make([]string, 0, len(blueprint.Metadata))
	for k := range blueprint.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ordered.Metadata = append(ordered.Metadata, kv{Key: k, Value: blueprint.Metadata[k]})
	}
	out, _ := json.Marshal(ordered)
	return out
}

type kv struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func formatUint(v uint64) string {
	const hexDigits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}

// DeterministicClock derives fixed ISO-8601 timestamps from a monotonic
// counter seeded when the phase run enters deterministic mode. Two runs
// over the same blueprint call Now() the same number of times in the same
// order, so their execution histories come out byte-identical.
type DeterministicClock struct {
	mu      sync.Mutex
	seed    time.Time
	counter int
}

// NewDeterministicClock seeds a clock at a fixed instant.
func NewDeterministicClock(seed time.Time) *DeterministicClock {
	return &DeterministicClock{seed: seed.UTC()}
}

// Now returns seed advanced by the call counter in whole seconds, then
// increments the counter. Zero sleeps: simulated work is elided entirely,
// per the deterministic-mode contract.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.seed.Add(time.Duration(c.counter) * time.Second)
	c.counter++
	return t
}

type deterministicContext struct {
	ctx   context.Context
	id    string
	clock *DeterministicClock
}

// NewDeterministicContext builds an engine.WorkflowContext for a
// deterministic phase run, keyed by DeterministicRunID(blueprint).
func NewDeterministicContext(ctx context.Context, blueprint Blueprint, clock *DeterministicClock) engine.WorkflowContext {
	id := DeterministicRunID(blueprint)
	return &deterministicContext{ctx: ctx, id: id, clock: clock}
}

func (d *deterministicContext) Context() context.Context { return d.ctx }
func (d *deterministicContext) WorkflowID() string        { return d.id }
func (d *deterministicContext) RunID() string              { return d.id }
func (d *deterministicContext) Now() time.Time             { return d.clock.Now() }
