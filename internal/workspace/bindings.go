package workspace

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
)

// Bindings is the "opaque bag of name→value pairs" from spec §3, preserved
// across calls to the same workspace and cleared only on explicit cleanup or
// recovery. Values are restricted to types the Python child process's
// preamble can reconstruct (bool, int64, float64, string, []byte, or a
// nested map/slice of those) — the Engine's python path is responsible for
// translating these into the interpreter's namespace.
type Bindings struct {
	mu     sync.RWMutex
	values map[string]any
}

func newBindings() *Bindings {
	return &Bindings{values: map[string]any{}}
}

// Set stores or replaces a binding.
func (b *Bindings) Set(name string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[name] = value
}

// Get returns a binding and whether it was present.
func (b *Bindings) Get(name string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[name]
	return v, ok
}

// Delete removes a binding if present.
func (b *Bindings) Delete(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, name)
}

// Clear empties all bindings — used on explicit cleanup or the Timeout/
// RuntimeFailure recovery strategy "clear bindings, retry once".
func (b *Bindings) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values = map[string]any{}
}

// Snapshot returns a copy of the current binding set, suitable for handing
// to the Python path's restore preamble.
func (b *Bindings) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]any, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// Restore replaces the binding set wholesale, used after a child process
// reports its updated namespace back to the engine.
func (b *Bindings) Restore(values map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values = values
}

// Encode serializes the current bindings with encoding/gob, for handing to
// a child process via a preamble file or for Health Monitor size accounting.
func (b *Bindings) Encode() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b.values); err != nil {
		return nil, fmt.Errorf("encoding bindings: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode replaces the binding set from gob-encoded bytes produced by Encode.
func (b *Bindings) Decode(data []byte) error {
	var values map[string]any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&values); err != nil {
		return fmt.Errorf("decoding bindings: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values = values
	return nil
}

// Len reports the number of bindings currently held.
func (b *Bindings) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.values)
}
