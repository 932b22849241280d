package syncutil

// Value guards a single value of type T. The zero value holds T's zero value.
type Value[T any] struct {
	v  T
	mu RWMutex
}

// NewValue returns a Value holding v.
func NewValue[T any](v T) *Value[T] {
	return &Value[T]{v: v}
}

// Load returns the current value.
func (g *Value[T]) Load() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.v
}

// Store replaces the current value.
func (g *Value[T]) Store(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.v = v
}

// Swap replaces the current value and returns the previous one.
func (g *Value[T]) Swap(v T) T {
	g.mu.Lock()
	defer g.mu.Unlock()
	old := g.v
	g.v = v
	return old
}

// Update applies fn to the value under the write lock and returns the result.
func (g *Value[T]) Update(fn func(T) T) T {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.v = fn(g.v)
	return g.v
}
