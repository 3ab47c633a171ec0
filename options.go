package fusion

import (
	"log/slog"
	"runtime"

	"github.com/hupe1980/fusion/codec"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	format           *codec.Format
	compression      *codec.Compression
	mmap             bool
	normalize        bool
	workers          int
}

func defaultOptions() options {
	return options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		mmap:             true,
		workers:          runtime.GOMAXPROCS(0),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Option configures Open and Save.
type Option func(*options)

// WithMetricsCollector configures a metrics collector. Pass nil to disable
// metrics collection.
//
//	metrics := &fusion.BasicMetricsCollector{}
//	m, _ := fusion.Open(ctx, fusion.Local("wiki.fifu"), fusion.WithMetricsCollector(metrics))
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging. Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithFormat sets the file format. Without it the format is guessed from
// the file name and defaults to finalfusion.
func WithFormat(f codec.Format) Option {
	return func(o *options) {
		o.format = &f
	}
}

// WithCompression sets the compression used by Save. Without it the
// compression is guessed from the file name. Open detects compression
// from the content.
func WithCompression(c codec.Compression) Option {
	return func(o *options) {
		o.compression = &c
	}
}

// WithMmap controls whether local finalfusion files are memory-mapped
// (the default) or read into memory.
func WithMmap(enabled bool) Option {
	return func(o *options) {
		o.mmap = enabled
	}
}

// WithNormalize scales every embedding to unit length after loading and
// keeps the original norms.
func WithNormalize(enabled bool) Option {
	return func(o *options) {
		o.normalize = enabled
	}
}

// WithWorkers bounds the parallelism of Quantize and Evaluate.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}
