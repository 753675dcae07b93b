package helpdesk

import "sync"

// BaselineStore holds the fingerprint baseline the guard compares against.
// The default is process-local; a shared implementation can be swapped in if
// every worker must agree on the baseline.
type BaselineStore interface {
	Get() (string, bool)
	Set(fingerprint string)
	Clear()
}

// MemoryBaseline is a single-slot in-memory BaselineStore. Safe for concurrent use.
type MemoryBaseline struct {
	mu    sync.Mutex
	value string
	set   bool
}

// NewMemoryBaseline creates an unset baseline.
func NewMemoryBaseline() *MemoryBaseline {
	return &MemoryBaseline{}
}

// Get returns the stored fingerprint and whether one is set.
func (b *MemoryBaseline) Get() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value, b.set
}

// Set stores fingerprint as the baseline.
func (b *MemoryBaseline) Set(fingerprint string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.value = fingerprint
	b.set = true
}

// Clear unsets the baseline.
func (b *MemoryBaseline) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.value = ""
	b.set = false
}

var _ BaselineStore = (*MemoryBaseline)(nil)
