package bus

import "fmt"

// Trace locates an event within a run: the drain batch it was posted in and its
// position inside that batch. Replaying the same data yields the same traces.
type Trace struct {
	Batch uint64
	Seq   uint32
}

func (t Trace) String() string {
	return fmt.Sprintf("%d.%d", t.Batch, t.Seq)
}
