package leave

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EditPolicy selects how Edit treats the balance of a Pending request.
type EditPolicy int

const (
	// EditKeepBalance persists the edited row only. The deduction made at
	// creation stays as it was, even if the day count changes.
	EditKeepBalance EditPolicy = iota

	// EditRebalance restores the original deduction, re-validates the edited
	// request and deducts the new day count, all in one transaction.
	EditRebalance
)

func (p EditPolicy) String() string {
	if p == EditRebalance {
		return "rebalance"
	}
	return "keep-balance"
}

type Option func(*options)

type options struct {
	clock      Clock
	logger     *zap.Logger
	newID      func() string
	editPolicy EditPolicy
}

func buildOptions(name string, opts []Option) options {
	o := options{
		clock:  SystemClock,
		logger: zap.L(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.Named(name)
	return o
}

func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithIDGenerator replaces uuid.NewString for new row ids.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

func WithEditPolicy(p EditPolicy) Option {
	return func(o *options) { o.editPolicy = p }
}
