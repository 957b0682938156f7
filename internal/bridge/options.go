package bridge

import (
	"github.com/Iron-Ham/spatialbridge/internal/event"
	"github.com/Iron-Ham/spatialbridge/internal/logging"
	"github.com/Iron-Ham/spatialbridge/internal/result"
)

// defaultMaxResults caps result arrays when a feature does not set its own.
const defaultMaxResults = 64

// Option configures a Bridge or a Settings updater.
type Option func(*config)

type config struct {
	logger     *logging.Logger
	bus        *event.Bus
	table      result.Table
	maxResults int
}

func newConfig(opts []Option) *config {
	cfg := &config{
		logger:     logging.NopLogger(),
		table:      result.Base(),
		maxResults: defaultMaxResults,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NopLogger()
	}
	if cfg.maxResults <= 0 {
		cfg.maxResults = defaultMaxResults
	}
	return cfg
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithBus publishes query and settings events on bus.
func WithBus(bus *event.Bus) Option {
	return func(c *config) {
		c.bus = bus
	}
}

// WithTable sets the status table, normally result.Base() extended with the
// feature's codes.
func WithTable(t result.Table) Option {
	return func(c *config) {
		c.table = t
	}
}

// WithMaxResults caps the number of records a single query may return. A
// token reporting more is errored with UnspecifiedFailure.
func WithMaxResults(n int) Option {
	return func(c *config) {
		c.maxResults = n
	}
}
