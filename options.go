// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

// reactorOptions holds configuration applied at New.
type reactorOptions struct {
	pollBatchSize  int
	metricsEnabled bool
	logger         Logger
}

// Option configures a Reactor instance.
type Option interface {
	applyReactor(*reactorOptions)
}

type optionFunc func(*reactorOptions)

func (f optionFunc) applyReactor(o *reactorOptions) { f(o) }

// WithPollBatchSize sets how many readiness events the poller adapter
// collects per blocking wait call. Larger batches amortize the syscall
// at the cost of a bigger preallocated event buffer.
func WithPollBatchSize(n int) Option {
	return optionFunc(func(o *reactorOptions) {
		if n > 0 {
			o.pollBatchSize = n
		}
	})
}

// WithMetrics enables runtime counters (turn count, poll count, tasks
// run) retrievable via Reactor.Metrics.
func WithMetrics(enabled bool) Option {
	return optionFunc(func(o *reactorOptions) {
		o.metricsEnabled = enabled
	})
}

// WithLogger injects a structured logger. Defaults to a no-op logger.
func WithLogger(l Logger) Option {
	return optionFunc(func(o *reactorOptions) {
		if l != nil {
			o.logger = l
		}
	})
}

func resolveOptions(opts []Option) *reactorOptions {
	cfg := &reactorOptions{
		pollBatchSize: 256,
		logger:        NewNoOpLogger(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyReactor(cfg)
	}
	return cfg
}
