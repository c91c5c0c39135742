// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package encodertest

import (
	"sync"

	"github.com/ManuGH/condense/internal/encoder"
)

// Factory hands out Fakes. Queued behaviors are used first, then the default.
type Factory struct {
	mu        sync.Mutex
	def       Behavior
	queue     []Behavior
	instances []*Fake
}

// NewFactory returns a factory whose fakes follow def unless a behavior is queued.
func NewFactory(def Behavior) *Factory {
	return &Factory{def: def}
}

// Push queues b for the next instance.
func (f *Factory) Push(b ...Behavior) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, b...)
}

// SetDefault replaces the behavior used once the queue is empty.
func (f *Factory) SetDefault(b Behavior) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.def = b
}

// New implements encoder.Factory.
func (f *Factory) New() encoder.Encoder {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.def
	if len(f.queue) > 0 {
		b, f.queue = f.queue[0], f.queue[1:]
	}
	fake := New(b)
	f.instances = append(f.instances, fake)
	return fake
}

// Count is the number of instances created so far.
func (f *Factory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.instances)
}

// Instance returns the i-th created fake.
func (f *Factory) Instance(i int) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.instances[i]
}

// Last returns the most recently created fake, or nil.
func (f *Factory) Last() *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.instances) == 0 {
		return nil
	}
	return f.instances[len(f.instances)-1]
}
