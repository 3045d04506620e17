package queue

// Cloner is implemented by record types that need to be copied when
// fanned out to more than one destination queue. Value types with no
// reference fields (e.g. a raw frame backed by a fixed-size array) can
// implement this as a plain value return.
type Cloner[T any] interface {
	Clone() T
}

// Distributor fans a single producer's records out to N registered
// queues. Registration is not safe to race with Push — callers must
// finish Register calls before the first Push, a "publish-once"
// discipline (spec §4.2).
type Distributor[T Cloner[T]] struct {
	queues []*Queue[T]
}

// NewDistributor creates an empty Distributor.
func NewDistributor[T Cloner[T]]() *Distributor[T] {
	return &Distributor[T]{}
}

// Register adds q as a fan-out destination.
func (d *Distributor[T]) Register(q *Queue[T]) {
	d.queues = append(d.queues, q)
}

// Push forwards v to every registered queue: a cloned copy to every
// queue but the last, and the original moved into the last. Returns the
// number of queues that rejected the push (overflow).
func (d *Distributor[T]) Push(v T) int {
	rejected := 0
	n := len(d.queues)
	for i, q := range d.queues {
		item := v
		if i < n-1 {
			item = v.Clone()
		}
		if !q.TryPush(item) {
			rejected++
		}
	}
	return rejected
}
