package value

// Weak is a reference embedded in IC stub data. It does not keep the target
// reachable from the collector's point of view: a sweep visits every Weak
// through a tracer and may relocate it (Set) or drop it (Clear). A cleared
// reference never matches a guard.
type Weak[T any] struct {
	target *T
}

// MakeWeak returns a weak reference to target.
func MakeWeak[T any](target *T) Weak[T] {
	return Weak[T]{target: target}
}

// Get returns the target, or nil once the reference has been cleared.
func (w *Weak[T]) Get() *T { return w.target }

// Set replaces the target, as a moving collector does on relocation.
func (w *Weak[T]) Set(target *T) { w.target = target }

// IsAlive reports whether the target has not been cleared.
func (w *Weak[T]) IsAlive() bool { return w.target != nil }

// Clear drops the target and returns the old one.
func (w *Weak[T]) Clear() *T {
	old := w.target
	w.target = nil
	return old
}

// Is reports whether the reference currently points at p. A cleared
// reference is never equal to anything, including nil.
func (w *Weak[T]) Is(p *T) bool {
	return w.target != nil && w.target == p
}
