package circular

// Buffer keeps the last capacity values, newest value is at index 0.
type Buffer[T any] struct {
	capacity uint

	head uint
	size uint
	data []T
}

func NewBuffer[T any](capacity uint) *Buffer[T] {
	if capacity == 0 {
		panic("capacity must > 0")
	}
	return &Buffer[T]{
		capacity: capacity,
		data:     make([]T, capacity),
	}
}

func (b *Buffer[T]) Capacity() uint {
	return b.capacity
}

func (b *Buffer[T]) Size() uint {
	return b.size
}

func (b *Buffer[T]) IsEmpty() bool {
	return b.size == 0
}

func (b *Buffer[T]) IsFull() bool {
	return b.size == b.capacity
}

func (b *Buffer[T]) Push(value T) {
	b.data[b.head] = value
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

func (b *Buffer[T]) Get(idx uint) T {
	if idx >= b.size {
		panic("index out of range")
	}
	return b.data[(b.head+b.capacity-1-idx)%b.capacity]
}

// Replace overwrites the newest value, it pushes when the buffer is empty.
func (b *Buffer[T]) Replace(value T) {
	if b.size == 0 {
		b.Push(value)
		return
	}
	b.data[(b.head+b.capacity-1)%b.capacity] = value
}

// Chronological returns a copy ordered from the oldest to the newest value.
func (b *Buffer[T]) Chronological() []T {
	out := make([]T, 0, b.size)
	for i := b.size; i > 0; i-- {
		out = append(out, b.Get(i-1))
	}
	return out
}
