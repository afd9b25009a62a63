package rcexpires

import (
	"time"

	"github.com/rs/zerolog"
)

// Options configures engine behavior.
type Options struct {
	// PageSize bounds how many index entries one sweep pass examines.
	PageSize int

	// ContinueThreshold is the per-page expired count above which a sweep
	// immediately runs another pass in the same invocation.
	ContinueThreshold int

	// Now supplies the engine clock. Defaults to time.Now.
	Now func() time.Time

	// Logger receives sweep summaries and per-record delete failures.
	// Defaults to a disabled logger.
	Logger zerolog.Logger
}

// DefaultOptions returns a baseline engine configuration.
func DefaultOptions() Options {
	return Options{
		PageSize:          DefaultPageSize,
		ContinueThreshold: DefaultContinueThreshold,
		Now:               time.Now,
		Logger:            zerolog.Nop(),
	}
}

func withDefaults(opts Options) Options {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.ContinueThreshold <= 0 {
		opts.ContinueThreshold = DefaultContinueThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}
