package dashboard

// DefaultTrendSize is the number of throughput samples kept per stage.
const DefaultTrendSize = 32

// Trends keeps a short throughput history per stage for the sparkline
// column. It is owned by the controller goroutine and is not safe for
// concurrent use.
type Trends struct {
	size   int
	stages map[string]*ringBuffer
}

// ringBuffer is a fixed-size circular buffer for float64 values.
type ringBuffer struct {
	data  []float64
	head  int
	count int
}

// NewTrends creates a trend tracker keeping size samples per stage.
func NewTrends(size int) *Trends {
	if size <= 0 {
		size = DefaultTrendSize
	}
	return &Trends{
		size:   size,
		stages: make(map[string]*ringBuffer),
	}
}

// Push records a throughput sample for name.
func (t *Trends) Push(name string, value float64) {
	rb, ok := t.stages[name]
	if !ok {
		rb = &ringBuffer{data: make([]float64, t.size)}
		t.stages[name] = rb
	}
	rb.push(value)
}

// Remove forgets a stage.
func (t *Trends) Remove(name string) {
	delete(t.stages, name)
}

// Get returns the samples for name, oldest first.
func (t *Trends) Get(name string) []float64 {
	rb, ok := t.stages[name]
	if !ok {
		return nil
	}
	return rb.values()
}

// Snapshot copies every stage's samples.
func (t *Trends) Snapshot() map[string][]float64 {
	out := make(map[string][]float64, len(t.stages))
	for name, rb := range t.stages {
		out[name] = rb.values()
	}
	return out
}

func (rb *ringBuffer) push(v float64) {
	rb.data[rb.head] = v
	rb.head = (rb.head + 1) % len(rb.data)
	if rb.count < len(rb.data) {
		rb.count++
	}
}

// values returns the buffered samples in chronological order.
func (rb *ringBuffer) values() []float64 {
	out := make([]float64, rb.count)
	start := (rb.head - rb.count + len(rb.data)) % len(rb.data)
	for i := 0; i < rb.count; i++ {
		out[i] = rb.data[(start+i)%len(rb.data)]
	}
	return out
}
