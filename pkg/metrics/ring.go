package metrics

// ring is a fixed-capacity FIFO that evicts its oldest entries on overflow.
// Not safe for concurrent use; the Store guards it.
type ring[T any] struct {
	buf  []T
	head int // index of the oldest entry
	size int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

// push appends v, dropping the oldest entry when full.
func (r *ring[T]) push(v T) {
	if len(r.buf) == 0 {
		return
	}

	tail := (r.head + r.size) % len(r.buf)
	r.buf[tail] = v

	if r.size < len(r.buf) {
		r.size++

		return
	}

	r.head = (r.head + 1) % len(r.buf)
}

// each calls fn for every entry from oldest to newest.
func (r *ring[T]) each(fn func(v *T)) {
	for i := 0; i < r.size; i++ {
		fn(&r.buf[(r.head+i)%len(r.buf)])
	}
}

func (r *ring[T]) len() int {
	return r.size
}

func (r *ring[T]) clear() {
	clear(r.buf)
	r.head = 0
	r.size = 0
}
