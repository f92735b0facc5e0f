package sched

import (
	"runtime"

	"k8s.io/klog/v2"
)

const (
	panicWorkersInvalid = "sched: WithWorkers: workers must be >= 1"
	panicFatalNil       = "sched: WithFatalHandler: handler must be non-nil"
)

// FatalHandler is called once with the first task error.
type FatalHandler func(err error)

// DefaultFatal logs err and exits the process.
func DefaultFatal(err error) {
	klog.Exitf("sched: fatal task error: %+v", err)
}

// Option configures a Graph.
type Option func(*Options)

// Options holds Graph configuration.
type Options struct {
	Workers int
	Fatal   FatalHandler
	Trace   bool
}

// WithWorkers bounds the number of tasks running at once.
func WithWorkers(n int) Option {
	if n < 1 {
		panic(panicWorkersInvalid)
	}
	return func(o *Options) { o.Workers = n }
}

// WithFatalHandler replaces the default klog.Exitf handler.
func WithFatalHandler(fn FatalHandler) Option {
	if fn == nil {
		panic(panicFatalNil)
	}
	return func(o *Options) { o.Fatal = fn }
}

// WithTrace records the task DAG.
func WithTrace() Option {
	return func(o *Options) { o.Trace = true }
}

func gatherOptions(opts ...Option) Options {
	o := Options{Workers: runtime.GOMAXPROCS(0), Fatal: DefaultFatal}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
