package device

// DefaultCapacity is the memory of a device in float64 elements.
const DefaultCapacity int64 = 1 << 27

// DefaultQueueDepth bounds the number of pending Submit calls per queue
// before Submit waits.
const DefaultQueueDepth = 1024

const (
	panicCapacityInvalid = "device: WithCapacity: capacity must be > 0"
	panicDepthInvalid    = "device: WithQueueDepth: depth must be > 0"
)

// Option configures a Device.
type Option func(*Options)

// Options holds Device configuration.
type Options struct {
	Capacity   int64
	QueueDepth int
}

// WithCapacity sets the pool capacity in elements.
func WithCapacity(n int64) Option {
	if n <= 0 {
		panic(panicCapacityInvalid)
	}
	return func(o *Options) { o.Capacity = n }
}

// WithQueueDepth sets the number of Submit slots of each queue.
func WithQueueDepth(n int) Option {
	if n <= 0 {
		panic(panicDepthInvalid)
	}
	return func(o *Options) { o.QueueDepth = n }
}

func gatherOptions(opts ...Option) Options {
	o := Options{Capacity: DefaultCapacity, QueueDepth: DefaultQueueDepth}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
