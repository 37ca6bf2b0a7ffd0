package provider

import (
	"log/slog"
	"time"
)

// Option is a function that allows configuring the Provider.
type Option func(*Provider) error

// WithLogger sets the logger used by the Provider. Executed statements are
// logged at the debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) error {
		p.logger = logger.With("component", "provider")
		return nil
	}
}

// WithTimeNow sets the function used to get the current time, e.g. for the
// acquisition time of the run lock.
func WithTimeNow(timeNow func() time.Time) Option {
	return func(p *Provider) error {
		p.timeNow = timeNow
		return nil
	}
}

// DefaultOptions returns the default Provider options.
func DefaultOptions() []Option {
	return []Option{
		WithLogger(slog.Default()),
		WithTimeNow(time.Now),
	}
}
