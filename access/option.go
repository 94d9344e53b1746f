package access

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option is a function that allows configuring the Manager.
type Option func(*Manager) error

// WithLogger sets the logger used by the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		m.logger = logger.With("component", "access")
		return nil
	}
}

// WithTimeNow sets the function used to get the current time. It determines
// the start date of scheduled tasks and the salt of tags.
func WithTimeNow(timeNow func() time.Time) Option {
	return func(m *Manager) error {
		m.timeNow = timeNow
		return nil
	}
}

// WithSaltedTags makes each window's tag unique to the time it was created.
func WithSaltedTags(salted bool) Option {
	return func(m *Manager) error {
		m.saltTags = salted
		return nil
	}
}

// WithTaskPolicy sets the permissions scheduled tasks run with.
func WithTaskPolicy(policy string) Option {
	return func(m *Manager) error {
		if policy == "" {
			policy = DefaultTaskPolicy
		}
		m.taskPolicy = policy
		return nil
	}
}

// WithRegisterer sets the Prometheus registerer metrics are registered with.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(m *Manager) error {
		m.registerer = r
		return nil
	}
}

// WithHistory sets the store the outcome of every change is recorded in.
func WithHistory(h History) Option {
	return func(m *Manager) error {
		m.history = h
		return nil
	}
}

// DefaultOptions returns the default Manager options.
func DefaultOptions() []Option {
	return []Option{
		WithLogger(slog.Default()),
		WithTimeNow(time.Now),
		WithTaskPolicy(DefaultTaskPolicy),
	}
}
