package profiler

// ring is a fixed-capacity FIFO that overwrites its oldest entry when full.
// It is not safe for concurrent use; the Profiler guards it.
type ring[T any] struct {
	items []T
	head  int
	count int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{items: make([]T, max(capacity, 1))}
}

func (r *ring[T]) push(v T) {
	r.items[r.head] = v
	r.head = (r.head + 1) % len(r.items)
	if r.count < len(r.items) {
		r.count++
	}
}

func (r *ring[T]) len() int {
	return r.count
}

// last returns up to n newest entries, oldest first. n <= 0 returns all.
func (r *ring[T]) last(n int) []T {
	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]T, 0, n)
	for i := n; i > 0; i-- {
		idx := (r.head - i + len(r.items)) % len(r.items)
		out = append(out, r.items[idx])
	}
	return out
}

func (r *ring[T]) all() []T {
	return r.last(0)
}

// newest returns the most recent entry.
func (r *ring[T]) newest() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	return r.items[(r.head-1+len(r.items))%len(r.items)], true
}

// each visits entries oldest first without copying.
func (r *ring[T]) each(fn func(T)) {
	for i := r.count; i > 0; i-- {
		fn(r.items[(r.head-i+len(r.items))%len(r.items)])
	}
}
