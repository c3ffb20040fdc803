package engine

import (
	"fmt"
	"time"

	"github.com/tartampluch/go-contactsync/internal/config"
)

type options struct {
	timeout     time.Duration
	concurrency int
	observer    Observer
}

func defaultOptions() *options {
	return &options{
		timeout: config.DefaultBatchTimeout,
	}
}

// Option configures an Engine.
type Option func(*options) error

func newOptions(opts ...Option) (*options, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// OptionError reports an invalid engine configuration.
type OptionError struct {
	Option  string
	Message string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("%s: %s %s", config.ErrEngineOption, e.Option, e.Message)
}

// WithTimeout bounds the whole batch. Tasks still running when it expires
// are cancelled.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return &OptionError{Option: "timeout", Message: "must be positive"}
		}
		o.timeout = d
		return nil
	}
}

// WithConcurrency caps the number of tasks running at once. Zero means
// one task per connection with no cap.
func WithConcurrency(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return &OptionError{Option: "concurrency", Message: "cannot be negative"}
		}
		o.concurrency = n
		return nil
	}
}

// WithObserver registers a callback for task state transitions.
func WithObserver(fn Observer) Option {
	return func(o *options) error {
		o.observer = fn
		return nil
	}
}
